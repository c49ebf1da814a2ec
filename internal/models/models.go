package models

import "time"

// Account roles
const (
	RoleClient     = "client"
	RoleFreelancer = "freelancer"
)

// Gig statuses
const (
	GigActive   = "active"
	GigInactive = "inactive"
)

// User represents a registered account
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	FullName     string    `json:"full_name"`
	Role         string    `json:"role"`
	Bio          string    `json:"bio,omitempty"`
	AvatarURL    string    `json:"avatar_url,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Gig represents a service listed by a freelancer
type Gig struct {
	ID               string    `json:"id"`
	SellerID         string    `json:"seller_id"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	Category         string    `json:"category,omitempty"`
	Price            int64     `json:"price"`
	DeliveryTimeDays int       `json:"delivery_time_days"`
	Images           []string  `json:"images,omitempty"`
	Status           string    `json:"status"`
	AvgRating        float64   `json:"avg_rating"`
	ReviewCount      int       `json:"review_count"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// GigFilter narrows gig listings
type GigFilter struct {
	Query           string
	Category        string
	SellerID        string
	MinPrice        int64
	MaxPrice        int64
	MaxDeliveryDays int
	IncludeInactive bool
	Limit           int
	Offset          int
}

// Review is a buyer's rating of a completed order
type Review struct {
	ID             string    `json:"id"`
	OrderID        string    `json:"order_id"`
	GigID          string    `json:"gig_id"`
	ReviewerID     string    `json:"reviewer_id"`
	ReviewedUserID string    `json:"reviewed_user_id"`
	Rating         int       `json:"rating"`
	Comment        string    `json:"comment"`
	CreatedAt      time.Time `json:"created_at"`
}

// Message is a directed text between two users
type Message struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

// Conversation summarizes the latest exchange with one counterpart
type Conversation struct {
	UserID        string    `json:"user_id"`
	FullName      string    `json:"full_name"`
	LastMessage   string    `json:"last_message"`
	LastMessageAt time.Time `json:"last_message_at"`
}

// ConversationKey identifies a thread by the unordered pair of participants.
func ConversationKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + ":" + b
}
