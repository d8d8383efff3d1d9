package profile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDonorProfile_AgeAt(t *testing.T) {
	dob := time.Date(2008, 10, 16, 0, 0, 0, 0, time.UTC)
	p := &DonorProfile{DonorID: "donor-1", DateOfBirth: &dob}

	age := p.AgeAt(time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC))
	require.NotNil(t, age)
	assert.Equal(t, 17, *age, "birthday not reached yet")

	age = p.AgeAt(time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, 18, *age)

	assert.Nil(t, (&DonorProfile{}).AgeAt(time.Now()))
}
