package rabbitmq

import (
	"testing"

	"github.com/devedd/neurochat/internal/maintenance"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeJob(t *testing.T) {
	job, err := maintenance.NewJob(maintenance.KindDeactivateStaleUsers)
	require.NoError(t, err)

	body, err := EncodeJob(job)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"kind":"deactivate_stale_users"`)

	got, err := DecodeJob(body)
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, job.Kind, got.Kind)

	for _, bad := range []string{`not json`, `{}`, `{"job_id":"x"}`, `{"kind":"deactivate_stale_users"}`} {
		_, err := DecodeJob([]byte(bad))
		assert.Error(t, err, bad)
	}
}
