package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

func ValidRole(role string) bool {
	return role == RoleUser || role == RoleAdmin
}

// Address is a shipping address stored on the user. Exactly one address
// is flagged as default once the user has any.
type Address struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Street    string             `bson:"street" json:"street"`
	City      string             `bson:"city" json:"city"`
	State     string             `bson:"state" json:"state"`
	ZipCode   string             `bson:"zipCode" json:"zipCode"`
	Country   string             `bson:"country" json:"country"`
	IsDefault bool               `bson:"isDefault" json:"isDefault"`
}

type User struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name             string             `bson:"name" json:"name"`
	Email            string             `bson:"email" json:"email"`
	Password         string             `bson:"password" json:"-"`
	Role             string             `bson:"role" json:"role"`
	Phone            string             `bson:"phone,omitempty" json:"phone,omitempty"`
	Addresses        []Address          `bson:"addresses,omitempty" json:"addresses"`
	StripeCustomerID string             `bson:"stripeCustomerId,omitempty" json:"-"`
	IsEmailVerified  bool               `bson:"isEmailVerified" json:"isEmailVerified"`
	CreatedAt        time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt        time.Time          `bson:"updatedAt" json:"updatedAt"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// AddAddress appends addr, keeping the default flag consistent: the first
// address always becomes the default, and an explicit default unsets all
// previous ones.
func (u *User) AddAddress(addr Address) {
	if addr.IsDefault || len(u.Addresses) == 0 {
		for i := range u.Addresses {
			u.Addresses[i].IsDefault = false
		}
		addr.IsDefault = true
	}
	if addr.ID.IsZero() {
		addr.ID = primitive.NewObjectID()
	}
	u.Addresses = append(u.Addresses, addr)
}

func (u *User) FindAddress(id primitive.ObjectID) int {
	for i := range u.Addresses {
		if u.Addresses[i].ID == id {
			return i
		}
	}
	return -1
}

// RemoveAddress deletes the address at idx. If the default address was
// removed the first remaining one becomes the default.
func (u *User) RemoveAddress(idx int) {
	u.Addresses = append(u.Addresses[:idx], u.Addresses[idx+1:]...)
	if len(u.Addresses) == 0 {
		return
	}
	for i := range u.Addresses {
		if u.Addresses[i].IsDefault {
			return
		}
	}
	u.Addresses[0].IsDefault = true
}
