package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSignedURLSignerRoundTrip(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, expiresAt, err := signer.Generate("job-1", "preferences/job-1/report.xlsx")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	jobID, path, parsedExpiry, err := signer.Parse(token, false)
	require.NoError(t, err)
	require.Equal(t, "job-1", jobID)
	require.Equal(t, "preferences/job-1/report.xlsx", path)
	require.WithinDuration(t, expiresAt, parsedExpiry, time.Second)
}

func TestSignedURLSignerExpired(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Minute)
	issued := time.Now().Add(-2 * time.Hour)
	signer.now = func() time.Time { return issued }
	token, _, err := signer.Generate("job-1", "report.pdf")
	require.NoError(t, err)

	signer.now = time.Now
	_, _, _, err = signer.Parse(token, false)
	require.ErrorIs(t, err, ErrInvalidToken)

	jobID, path, _, err := signer.Parse(token, true)
	require.NoError(t, err)
	require.Equal(t, "job-1", jobID)
	require.Equal(t, "report.pdf", path)
}

func TestSignedURLSignerRejectsForeignSecret(t *testing.T) {
	token, _, err := NewSignedURLSigner("one", time.Hour).Generate("job-1", "report.docx")
	require.NoError(t, err)

	_, _, _, err = NewSignedURLSigner("two", time.Hour).Parse(token, false)
	require.ErrorIs(t, err, ErrInvalidToken)

	_, _, _, err = NewSignedURLSigner("one", time.Hour).Parse(strings.TrimSuffix(token, token[len(token)-2:]), false)
	require.Error(t, err)
}

func TestSignedURLSignerRequiresInputs(t *testing.T) {
	_, _, err := NewSignedURLSigner("secret", time.Hour).Generate("", "x")
	require.Error(t, err)
	_, _, err = NewSignedURLSigner("", time.Hour).Generate("job", "x")
	require.Error(t, err)
}
