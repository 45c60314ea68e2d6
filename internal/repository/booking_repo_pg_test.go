package repository

import (
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
)

func TestNewRepositories(t *testing.T) {
	pool := &pgxpool.Pool{}
	assert.NotNil(t, NewBookingRepository(pool))
	assert.NotNil(t, NewCouponRepository(pool))
	assert.NotNil(t, NewRegistrationRepository(pool))
	assert.NotNil(t, NewEventRepository(pool))
	assert.NotNil(t, NewSessionRepository(pool))
	assert.NotNil(t, NewMaintenanceRepository(pool))
}

func TestDiscountOf(t *testing.T) {
	assert.Equal(t, 0, discountOf(nil))
}
