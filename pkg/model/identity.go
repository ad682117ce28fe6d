package model

import "time"

type Vendor struct {
	ID              string `json:"id" bson:"_id"`
	Name            string `json:"name" bson:"name"`
	Email           string `json:"email" bson:"email"`
	StripeAccountID string `json:"stripe_account_id,omitempty" bson:"stripe_account_id,omitempty"`
}

type User struct {
	ID               string    `json:"id" bson:"_id"`
	Email            string    `json:"email" bson:"email"`
	Name             string    `json:"name,omitempty" bson:"name,omitempty"`
	StripeCustomerID string    `json:"stripe_customer_id,omitempty" bson:"stripe_customer_id,omitempty"`
	CreatedAt        time.Time `json:"created_at" bson:"created_at"`
}
