package repository

import (
	"github.com/sei-platform/seibackend/models"
)

// UserRepository defines the methods for account data operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	Update(user *models.User) error
	ListAll() ([]models.User, error)
}

// ConnectionRepository defines the methods for researcher connection requests
type ConnectionRepository interface {
	Create(conn *models.Connection) error
	GetByID(id uint) (*models.Connection, error)
	FindBetween(a, b uint) (*models.Connection, error)
	ListForResearcher(researcherID uint, estado string) ([]models.Connection, error)
	UpdateEstado(id uint, estado string) error
	Delete(id uint) error
}

// MessageRepository defines the methods for direct messages between researchers
type MessageRepository interface {
	Create(msg *models.Message) error
	GetByID(id uint) (*models.Message, error)
	ListForResearcher(researcherID uint, counterpartID *uint) ([]models.Message, error)
	MarkRead(id uint) error
	CountUnread(researcherID uint) (int64, error)
	Delete(id uint) error
}
