package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClusterByHashGroupsAndSortsByHash(t *testing.T) {
	rows := []ContactRow{
		{ID: "1", HashSignature: "bbb"},
		{ID: "2", HashSignature: "aaa"},
		{ID: "3", HashSignature: "bbb"},
	}
	clusters := clusterByHash(rows)
	require.Len(t, clusters, 2)
	assert.Equal(t, "aaa", clusters[0].HashSignature)
	assert.Equal(t, "bbb", clusters[1].HashSignature)
	assert.Len(t, clusters[1].Contacts, 2)
}

func TestClusterByHashEmptyInput(t *testing.T) {
	clusters := clusterByHash(nil)
	assert.Empty(t, clusters)
}
