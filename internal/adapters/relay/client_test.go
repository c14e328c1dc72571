package relay

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trebuchet-org/treb-release/internal/domain/models"
)

const testRelayURL = "https://relay.example.com/v1"

func newTestClient(t *testing.T) *Client {
	t.Helper()
	c := NewClient(models.RelayCredentials{
		URL:       testRelayURL + "/",
		APIKey:    "key",
		APISecret: "secret",
		Network:   "mainnet",
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	c.httpClient = &http.Client{Transport: httpmock.DefaultTransport}
	return c
}

func testProposal() models.Proposal {
	return models.Proposal{
		Title:             "Release 42",
		Description:       "upgrade pool",
		Network:           "mainnet",
		Target:            common.HexToAddress("0x40A2aCCbd92BCA938b02010E17A5b8929b49130D"),
		Value:             big.NewInt(0),
		Payload:           []byte{0x8d, 0x80, 0xff, 0x0a},
		ApprovingMultisig: common.HexToAddress("0x00000000000000000000000000000000000000aa"),
		Operation:         models.OperationDelegateCall,
		IdempotencyKey:    "3a0c5a0e-6f0b-4d55-9c43-1d1d8f7c2d8e",
	}
}

func TestSubmitProposal_Success(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("POST", testRelayURL+"/proposals",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "key", req.Header.Get("X-Api-Key"))
			assert.Equal(t, "secret", req.Header.Get("X-Api-Secret"))
			assert.Equal(t, "3a0c5a0e-6f0b-4d55-9c43-1d1d8f7c2d8e", req.Header.Get("Idempotency-Key"))

			var body map[string]string
			require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
			assert.Equal(t, "Release 42", body["title"])
			assert.Equal(t, "mainnet", body["network"])
			assert.Equal(t, testProposal().Target.Hex(), body["target"])
			assert.Equal(t, "0x8d80ff0a", body["data"])
			assert.Equal(t, "0", body["value"])
			assert.Equal(t, "delegateCall", body["operationType"])
			assert.Equal(t, testProposal().ApprovingMultisig.Hex(), body["approvingMultisig"])

			return httpmock.NewStringResponse(201, `{"proposalId":"p-1","url":"https://relay.example.com/p-1"}`), nil
		})

	sub, err := newTestClient(t).SubmitProposal(context.Background(), testProposal())
	require.NoError(t, err)
	assert.True(t, sub.Submitted)
	assert.Equal(t, "p-1", sub.ProposalID)
	assert.Equal(t, "https://relay.example.com/p-1", sub.URL)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestSubmitProposal_APIError(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("POST", testRelayURL+"/proposals",
		httpmock.NewStringResponder(401, `{"message":"invalid api key"}`))

	_, err := newTestClient(t).SubmitProposal(context.Background(), testProposal())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
	assert.Contains(t, err.Error(), "invalid api key")
}

func TestSubmitProposal_MissingID(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("POST", testRelayURL+"/proposals",
		httpmock.NewStringResponder(200, `{}`))

	_, err := newTestClient(t).SubmitProposal(context.Background(), testProposal())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "without returning an id")
}

func TestSubmitProposal_InvalidJSON(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("POST", testRelayURL+"/proposals",
		httpmock.NewStringResponder(200, `not json`))

	_, err := newTestClient(t).SubmitProposal(context.Background(), testProposal())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse relay response")
}
