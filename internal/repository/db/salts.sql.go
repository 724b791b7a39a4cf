package db

import (
	"context"
	"database/sql"
)

const getSaltByIdentityHash = `-- name: GetSaltByIdentityHash :one
SELECT id, identity_hash, issuer, audience, salt_value, created_at
FROM user_salts
WHERE identity_hash = ?
`

func (q *Queries) GetSaltByIdentityHash(ctx context.Context, identityHash string) (UserSalt, error) {
	row := q.db.QueryRowContext(ctx, getSaltByIdentityHash, identityHash)
	var i UserSalt
	err := row.Scan(
		&i.ID,
		&i.IdentityHash,
		&i.Issuer,
		&i.Audience,
		&i.SaltValue,
		&i.CreatedAt,
	)
	return i, err
}

const insertSalt = `-- name: InsertSalt :execresult
INSERT INTO user_salts (identity_hash, issuer, audience, salt_value)
VALUES (?, ?, ?, ?)
`

type InsertSaltParams struct {
	IdentityHash string `json:"identity_hash"`
	Issuer       string `json:"issuer"`
	Audience     string `json:"audience"`
	SaltValue    string `json:"salt_value"`
}

func (q *Queries) InsertSalt(ctx context.Context, arg InsertSaltParams) (sql.Result, error) {
	return q.db.ExecContext(ctx, insertSalt,
		arg.IdentityHash,
		arg.Issuer,
		arg.Audience,
		arg.SaltValue,
	)
}

const deleteSaltByIdentityHash = `-- name: DeleteSaltByIdentityHash :execresult
DELETE FROM user_salts
WHERE identity_hash = ?
`

func (q *Queries) DeleteSaltByIdentityHash(ctx context.Context, identityHash string) (sql.Result, error) {
	return q.db.ExecContext(ctx, deleteSaltByIdentityHash, identityHash)
}

const insertSaltDeletion = `-- name: InsertSaltDeletion :exec
INSERT INTO salt_deletions (identity_hash, orphaned_address)
VALUES (?, ?)
`

type InsertSaltDeletionParams struct {
	IdentityHash    string `json:"identity_hash"`
	OrphanedAddress string `json:"orphaned_address"`
}

func (q *Queries) InsertSaltDeletion(ctx context.Context, arg InsertSaltDeletionParams) error {
	_, err := q.db.ExecContext(ctx, insertSaltDeletion, arg.IdentityHash, arg.OrphanedAddress)
	return err
}
