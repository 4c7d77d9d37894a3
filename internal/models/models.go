package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// OrderStatus is the lifecycle state of an order
type OrderStatus string

// Order statuses
const (
	OrderStatusPending    OrderStatus = "Pending"
	OrderStatusInProgress OrderStatus = "In Progress"
	OrderStatusDone       OrderStatus = "Done"
	OrderStatusCancelled  OrderStatus = "Cancelled"
)

// Valid reports whether s is one of the known order statuses
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusInProgress, OrderStatusDone, OrderStatusCancelled:
		return true
	}
	return false
}

// MilestoneStatus is the state of a single milestone
type MilestoneStatus string

// Milestone statuses
const (
	MilestoneStatusPending    MilestoneStatus = "pending"
	MilestoneStatusInProgress MilestoneStatus = "in_progress"
	MilestoneStatusCompleted  MilestoneStatus = "completed"
	MilestoneStatusCancelled  MilestoneStatus = "cancelled"
)

// Valid reports whether s is one of the known milestone statuses
func (s MilestoneStatus) Valid() bool {
	switch s {
	case MilestoneStatusPending, MilestoneStatusInProgress, MilestoneStatusCompleted, MilestoneStatusCancelled:
		return true
	}
	return false
}

// User represents a marketplace account, either buying or selling
type User struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
	Name      string    `gorm:"not null" json:"name"`
	Email     string    `gorm:"uniqueIndex" json:"email"`
	Image     *string   `json:"image,omitempty"`
}

// Service represents a listing a seller offers
type Service struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
	SellerID     uuid.UUID `gorm:"type:uuid;not null;index" json:"seller_id"`
	Title        string    `gorm:"not null" json:"title"`
	Description  string    `gorm:"type:text" json:"description"`
	Price        int64     `gorm:"not null" json:"price"`
	DeliveryDays int       `gorm:"not null;default:7" json:"delivery_days"`
}

// Order represents a client's purchase of a seller's service
type Order struct {
	ID              uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt       time.Time   `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt       time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
	OrderNumber     string      `gorm:"not null;uniqueIndex" json:"order_number"`
	ClientID        *uuid.UUID  `gorm:"type:uuid;index" json:"client_id"`
	SellerID        *uuid.UUID  `gorm:"type:uuid;index" json:"seller_id"`
	ServiceID       *uuid.UUID  `gorm:"type:uuid;index" json:"service_id"`
	Requirements    string      `gorm:"type:text;not null" json:"requirements"`
	AdditionalNotes *string     `gorm:"type:text" json:"additional_notes,omitempty"`
	TotalPrice      int64       `gorm:"not null" json:"total_price"`
	Status          OrderStatus `gorm:"not null;default:Pending;index" json:"status"`
	DeliveryDate    *time.Time  `json:"delivery_date,omitempty"`
}

// Milestone is a named checkpoint within an order's delivery timeline
type Milestone struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	OrderID       uuid.UUID       `gorm:"type:uuid;not null;index" json:"order_id"`
	Title         string          `gorm:"not null" json:"title"`
	Description   *string         `gorm:"type:text" json:"description,omitempty"`
	Status        MilestoneStatus `gorm:"not null;default:pending" json:"status"`
	EstimatedDate time.Time       `gorm:"not null" json:"estimated_date"`
	CompletedDate *time.Time      `json:"completed_date,omitempty"`
	Position      int             `gorm:"not null;default:0" json:"position"`
}

// Message is an entry in an order's communication log
type Message struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	OrderID   uuid.UUID  `gorm:"type:uuid;not null;index" json:"order_id"`
	SenderID  *uuid.UUID `gorm:"type:uuid" json:"sender_id"`
	Content   string     `gorm:"type:text;not null" json:"content"`
}

// Attachment is a file delivered against an order
type Attachment struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	OrderID     uuid.UUID  `gorm:"type:uuid;not null;index" json:"order_id"`
	MessageID   *uuid.UUID `gorm:"type:uuid" json:"message_id,omitempty"`
	UploaderID  *uuid.UUID `gorm:"type:uuid" json:"uploader_id"`
	Filename    string     `gorm:"not null" json:"filename"`
	URL         string     `gorm:"not null" json:"url"`
	Size        int64      `gorm:"not null" json:"size"`
	MimeType    string     `gorm:"not null" json:"mime_type"`
	Description string     `gorm:"type:text" json:"description"`
	IsPublic    bool       `gorm:"not null" json:"is_public"`
}

// Review is the client's rating of a completed order
type Review struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	OrderID   uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex" json:"order_id"`
	SellerID  *uuid.UUID `gorm:"type:uuid;index" json:"seller_id"`
	ClientID  *uuid.UUID `gorm:"type:uuid" json:"client_id"`
	ServiceID *uuid.UUID `gorm:"type:uuid;index" json:"service_id"`
	Rating    int        `gorm:"not null" json:"rating"`
	Comment   string     `gorm:"type:text;not null" json:"comment"`
}

// DeliveryDraft is a seller's saved, not yet submitted delivery
type DeliveryDraft struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
	OrderID        uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"order_id"`
	SellerID       uuid.UUID `gorm:"type:uuid;not null" json:"seller_id"`
	Message        string    `gorm:"type:text" json:"message"`
	MarkAsComplete bool      `gorm:"not null;default:false" json:"mark_as_complete"`
	Files          []byte    `gorm:"type:text" json:"files"`
}

// OrderWithDetails is the read model behind the order page
type OrderWithDetails struct {
	Order
	Service     *Service     `json:"service,omitempty"`
	Client      *User        `json:"client,omitempty"`
	Seller      *User        `json:"seller"`
	Messages    []Message    `json:"messages"`
	Attachments []Attachment `json:"attachments"`
	Milestones  []Milestone  `json:"milestones"`
	Progress    int          `json:"progress"`
	HasReviewed bool         `json:"has_reviewed"`
}

// OrderStats aggregates order counts and revenue
type OrderStats struct {
	TotalOrders       int64 `json:"total_orders"`
	PendingOrders     int64 `json:"pending_orders"`
	InProgressOrders  int64 `json:"in_progress_orders"`
	CompletedOrders   int64 `json:"completed_orders"`
	CancelledOrders   int64 `json:"cancelled_orders"`
	TotalRevenue      int64 `json:"total_revenue"`
	AverageOrderValue int64 `json:"average_order_value"`
}

func newID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

func (u *User) BeforeCreate(tx *gorm.DB) error          { newID(&u.ID); return nil }
func (s *Service) BeforeCreate(tx *gorm.DB) error       { newID(&s.ID); return nil }
func (o *Order) BeforeCreate(tx *gorm.DB) error         { newID(&o.ID); return nil }
func (m *Milestone) BeforeCreate(tx *gorm.DB) error     { newID(&m.ID); return nil }
func (m *Message) BeforeCreate(tx *gorm.DB) error       { newID(&m.ID); return nil }
func (a *Attachment) BeforeCreate(tx *gorm.DB) error    { newID(&a.ID); return nil }
func (r *Review) BeforeCreate(tx *gorm.DB) error        { newID(&r.ID); return nil }
func (d *DeliveryDraft) BeforeCreate(tx *gorm.DB) error { newID(&d.ID); return nil }

// IsClient reports whether userID is the order's client
func (o *Order) IsClient(userID uuid.UUID) bool {
	return o.ClientID != nil && *o.ClientID == userID
}

// IsSeller reports whether userID is the order's seller
func (o *Order) IsSeller(userID uuid.UUID) bool {
	return o.SellerID != nil && *o.SellerID == userID
}

// SetupModels configures GORM models and runs migrations
func SetupModels(db *gorm.DB) error {
	err := db.AutoMigrate(
		&User{},
		&Service{},
		&Order{},
		&Milestone{},
		&Message{},
		&Attachment{},
		&Review{},
		&DeliveryDraft{},
	)
	if err != nil {
		return errors.Wrap(err, "failed to run auto migrations")
	}

	return nil
}
