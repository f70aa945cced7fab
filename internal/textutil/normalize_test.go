package textutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Store Manager", "storemanager"},
		{"  store   MANAGER\t", "storemanager"},
		{"StoreManager", "storemanager"},
		{"", ""},
		{"Sales Executive (Sr)", "salesexecutive(sr)"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MatchKey(tt.in), tt.in)
	}
}

func TestMatchKey_NoPartialEquality(t *testing.T) {
	assert.NotEqual(t, MatchKey("Manager"), MatchKey("Store Manager"))
}

func TestClean(t *testing.T) {
	assert.Equal(t, "Store Manager", Clean("  Store \t Manager\n"))
	assert.Equal(t, "SG Kottayam", Clean("SG Kottayam"))
	assert.Equal(t, "", Clean(" \t "))
}
