package repository

import (
	"github.com/fndlabs/foundation/app/models"
	"gorm.io/gorm"
)

type accountRepository struct {
	db *gorm.DB
}

// NewAccountRepository creates an account repository backed by GORM.
func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &accountRepository{db: db}
}

func (r *accountRepository) GetByID(id uint) (*models.Account, error) {
	var account models.Account
	if err := r.db.First(&account, id).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *accountRepository) GetByBillingCustomerID(customerID string) (*models.Account, error) {
	var account models.Account
	if err := r.db.Where("billing_customer_id = ?", customerID).First(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *accountRepository) SetBillingCustomerID(id uint, customerID string) error {
	return r.db.Model(&models.Account{}).Where("id = ?", id).
		Update("billing_customer_id", customerID).Error
}

func (r *accountRepository) Update(account *models.Account) error {
	return r.db.Save(account).Error
}
