package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus_CanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusActive, StatusIgnored, true},
		{StatusActive, StatusResolved, true},
		{StatusIgnored, StatusActive, true},
		{StatusResolved, StatusActive, true},
		{StatusIgnored, StatusResolved, false},
		{StatusResolved, StatusIgnored, false},
		{StatusActive, StatusActive, false},
		{StatusIgnored, StatusIgnored, false},
		{Status("bogus"), StatusActive, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransition(tt.to))
		})
	}
}

func TestSeverity_Rank(t *testing.T) {
	assert.Less(t, SeverityLow.Rank(), SeverityMedium.Rank())
	assert.Less(t, SeverityMedium.Rank(), SeverityCritical.Rank())
	assert.False(t, Severity("high").Valid())
}

func TestInvalidTransitionIsConflict(t *testing.T) {
	assert.True(t, errors.Is(ErrInvalidTransition, ErrConflict))
}

func TestRegistrableDomain(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"example.com", "example.com"},
		{"https://www.Example.com/path?q=1", "example.com"},
		{"blog.example.co.uk", "example.co.uk"},
		{"localhost:8080", "localhost"},
		{"example.com.", "example.com"},
	}
	for _, tt := range tests {
		got, err := RegistrableDomain(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := RegistrableDomain("   ")
	require.Error(t, err)
	assert.True(t, IsValidation(err))
}
