package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/trebuchet-org/treb-release/internal/domain/models"
	"github.com/trebuchet-org/treb-release/internal/usecase"
)

const proposalsPath = "/proposals"

// proposalRequest is the body of POST /proposals
type proposalRequest struct {
	Title             string `json:"title"`
	Description       string `json:"description"`
	Network           string `json:"network,omitempty"`
	Target            string `json:"target"`
	Value             string `json:"value"`
	Data              string `json:"data"`
	ApprovingMultisig string `json:"approvingMultisig"`
	OperationType     string `json:"operationType"`
	IdempotencyKey    string `json:"idempotencyKey"`
}

// proposalResponse is the body returned for an accepted proposal
type proposalResponse struct {
	ProposalID string `json:"proposalId"`
	URL        string `json:"url"`
}

// Client submits proposals to the approval service
type Client struct {
	baseURL    string
	apiKey     string
	apiSecret  string
	httpClient *http.Client
	log        *slog.Logger
}

// NewClient creates a relay client for the given credentials
func NewClient(creds models.RelayCredentials, log *slog.Logger) *Client {
	return &Client{
		baseURL:   strings.TrimSuffix(creds.URL, "/"),
		apiKey:    creds.APIKey,
		apiSecret: creds.APISecret,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: log.With("component", "relay"),
	}
}

// SubmitProposal posts a proposal. The service deduplicates on the
// idempotency key, so the same key never produces two proposals.
func (c *Client) SubmitProposal(ctx context.Context, proposal models.Proposal) (*models.ProposalSubmission, error) {
	value := "0"
	if proposal.Value != nil {
		value = proposal.Value.String()
	}

	body, err := json.Marshal(proposalRequest{
		Title:             proposal.Title,
		Description:       proposal.Description,
		Network:           proposal.Network,
		Target:            proposal.Target.Hex(),
		Value:             value,
		Data:              hexutil.Encode(proposal.Payload),
		ApprovingMultisig: proposal.ApprovingMultisig.Hex(),
		OperationType:     proposal.Operation.String(),
		IdempotencyKey:    proposal.IdempotencyKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode proposal: %w", err)
	}

	url := c.baseURL + proposalsPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", proposal.IdempotencyKey)
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}
	if c.apiSecret != "" {
		req.Header.Set("X-Api-Secret", c.apiSecret)
	}

	c.log.Debug("submitting proposal", "url", url, "key", proposal.IdempotencyKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to submit proposal: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("relay API error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var out proposalResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("failed to parse relay response: %w", err)
	}
	if out.ProposalID == "" {
		return nil, fmt.Errorf("relay accepted the proposal without returning an id")
	}

	c.log.Info("proposal submitted", "id", out.ProposalID, "url", out.URL)
	return &models.ProposalSubmission{
		Submitted:  true,
		ProposalID: out.ProposalID,
		URL:        out.URL,
	}, nil
}

// Ensure the client implements the interface
var _ usecase.RelayClient = (*Client)(nil)
