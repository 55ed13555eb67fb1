package archive

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"applygate/internal/directory"
	id "applygate/pkg/domain"
	dErrors "applygate/pkg/domain-errors"
)

func TestSnapshotRoundTrip(t *testing.T) {
	userID := id.NewUserID()
	verified := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	created := time.Date(2024, 11, 20, 8, 0, 0, 0, time.UTC)
	birth := time.Date(1990, 6, 15, 0, 0, 0, 0, time.UTC)

	graph := &directory.Graph{
		Profile: &directory.Profile{
			UserID:    userID,
			FirstName: "Maria",
			LastName:  "Santos",
			BirthDate: &birth,
		},
		Address: &directory.Address{
			UserID:  userID,
			Line1:   "12 Rizal St",
			City:    "Cebu",
			Country: "PH",
		},
		Financial: &directory.Financial{
			UserID:       userID,
			AnnualIncome: 850000,
			LiquidAssets: 200000,
		},
		Affiliations: []*directory.Affiliation{
			{UserID: userID, Organization: "Chamber of Commerce", Role: "member"},
		},
		Applications: []*directory.Application{
			{ID: id.NewApplicationID(), ApplicantID: userID, CompanyID: uuid.New(), Status: "submitted", SubmittedAt: created},
		},
	}

	snap := BuildSnapshot("maria@example.com", &verified, created, 45, graph)
	assert.Equal(t, SchemaVersion1, snap.SchemaVersion)
	assert.Equal(t, int64(45), snap.Account.CreditBalance)
	assert.Nil(t, snap.Company, "absent sub-records stay nil")
	assert.Nil(t, snap.Attachments)

	encoded, err := EncodeSnapshot(snap)
	require.NoError(t, err)

	decoded, err := DecodeSnapshot(encoded)
	require.NoError(t, err)
	assert.Equal(t, "maria@example.com", decoded.Account.Email)
	require.NotNil(t, decoded.Account.EmailVerifiedAt)
	assert.True(t, decoded.Account.EmailVerifiedAt.Equal(verified))
	require.NotNil(t, decoded.Profile)
	assert.Equal(t, "Maria", decoded.Profile.FirstName)
	require.NotNil(t, decoded.Address)
	assert.Equal(t, "Cebu", decoded.Address.City)
	require.NotNil(t, decoded.Financial)
	assert.Equal(t, int64(850000), decoded.Financial.AnnualIncome)
	require.Len(t, decoded.Affiliations, 1)
	require.Len(t, decoded.Applications, 1)
	assert.Nil(t, decoded.Company)
}

func TestDecodeSnapshot_RejectsUnknownVersion(t *testing.T) {
	_, err := DecodeSnapshot([]byte(`{"schema_version": 9, "account": {"email": "x@y.z"}}`))
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}

func TestDecodeSnapshot_RejectsMalformedPayload(t *testing.T) {
	_, err := DecodeSnapshot([]byte(`{not json`))
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}

func TestBuildSnapshot_NilGraph(t *testing.T) {
	snap := BuildSnapshot("bare@example.com", nil, time.Now(), 0, nil)
	encoded, err := EncodeSnapshot(snap)
	require.NoError(t, err)
	decoded, err := DecodeSnapshot(encoded)
	require.NoError(t, err)
	assert.Equal(t, "bare@example.com", decoded.Account.Email)
	assert.Nil(t, decoded.Profile)
}
