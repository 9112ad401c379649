package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestS3ReplicaKeys(t *testing.T) {
	assert.Equal(t, "foo.txt", NewS3Replica("", "eu-west-2", "bucket", "").keyFor("foo"))
	assert.Equal(t, "notes/foo bar.txt", NewS3Replica("", "eu-west-2", "bucket", "notes/").keyFor("foo bar"))
}
