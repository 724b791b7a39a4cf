package db

import (
	"time"
)

type UserSalt struct {
	ID           uint64    `json:"id"`
	IdentityHash string    `json:"identity_hash"`
	Issuer       string    `json:"issuer"`
	Audience     string    `json:"audience"`
	SaltValue    string    `json:"salt_value"`
	CreatedAt    time.Time `json:"created_at"`
}

type SaltDeletion struct {
	ID              uint64    `json:"id"`
	IdentityHash    string    `json:"identity_hash"`
	OrphanedAddress string    `json:"orphaned_address"`
	DeletedAt       time.Time `json:"deleted_at"`
}
