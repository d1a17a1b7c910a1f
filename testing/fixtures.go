package testingutil

import (
	"fmt"
	"math/rand"

	"github.com/amirphl/wilaya-connect/models"
	"github.com/amirphl/wilaya-connect/utils"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// CreateTestAdmin inserts an active admin with a random username
func (tf *TestFixtures) CreateTestAdmin() (*models.Admin, error) {
	admin := &models.Admin{
		UUID:     uuid.New(),
		Username: fmt.Sprintf("admin_%06d", rand.Intn(1000000)),
		IsActive: utils.ToPtr(true),
	}
	if err := tf.DB.DB.Create(admin).Error; err != nil {
		return nil, fmt.Errorf("failed to create test admin: %w", err)
	}
	return admin, nil
}

// CreateTestCitizen inserts a citizen with a random Algerian mobile number and the given tokens
func (tf *TestFixtures) CreateTestCitizen(tokens ...string) (*models.Citizen, error) {
	if tokens == nil {
		tokens = []string{}
	}
	citizen := &models.Citizen{
		UUID:        uuid.New(),
		PhoneNumber: fmt.Sprintf("+2135%08d", rand.Intn(100000000)),
		PushTokens:  pq.StringArray(tokens),
	}
	if err := tf.DB.DB.Create(citizen).Error; err != nil {
		return nil, fmt.Errorf("failed to create test citizen: %w", err)
	}
	return citizen, nil
}

// Subscribe records a subscription row for the citizen
func (tf *TestFixtures) Subscribe(citizenID uint, category string, active bool) (*models.NotificationSubscription, error) {
	sub := &models.NotificationSubscription{
		CitizenID:    citizenID,
		CategoryName: category,
		IsActive:     utils.ToPtr(active),
	}
	if err := tf.DB.DB.Create(sub).Error; err != nil {
		return nil, fmt.Errorf("failed to create subscription: %w", err)
	}
	return sub, nil
}
