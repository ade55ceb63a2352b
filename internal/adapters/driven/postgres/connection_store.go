package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/conecta-labs/conecta-core/internal/core/domain"
	"github.com/conecta-labs/conecta-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.ConnectionStore = (*ConnectionStore)(nil)

// ConnectionStore implements driven.ConnectionStore using PostgreSQL.
// The status column persists the coarse StoreStatus; the richer lifecycle
// states exist only in memory.
type ConnectionStore struct {
	db *DB
}

// NewConnectionStore creates a new ConnectionStore
func NewConnectionStore(db *DB) *ConnectionStore {
	return &ConnectionStore{db: db}
}

const connectionColumns = `
	id, name, owner_id, status,
	whatsapp_profile_name, whatsapp_contact, whatsapp_avatar_url, whatsapp_avatar_data,
	whatsapp_connected_at, qr_image, qr_code, qr_issued_at, qr_expires_at,
	created_at, updated_at
`

// Create inserts a connection and assigns its ID
func (s *ConnectionStore) Create(ctx context.Context, conn *domain.Connection) error {
	query := `
		INSERT INTO connections (
			name, owner_id, status,
			whatsapp_profile_name, whatsapp_contact, whatsapp_avatar_url, whatsapp_avatar_data,
			whatsapp_connected_at, qr_image, qr_code, qr_issued_at, qr_expires_at,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id
	`

	var (
		profileName, contact, avatarURL, avatarData sql.NullString
		qrImage, qrCode                             sql.NullString
		qrIssuedAt, qrExpiresAt                     sql.NullTime
	)
	if p := conn.Profile; p != nil {
		profileName = sql.NullString{String: p.DisplayName, Valid: true}
		contact = sql.NullString{String: p.Contact, Valid: true}
		avatarURL = sql.NullString{String: p.AvatarURL, Valid: true}
		avatarData = sql.NullString{String: p.AvatarData, Valid: p.AvatarData != ""}
	}
	if qr := conn.QR; qr != nil {
		qrImage = sql.NullString{String: qr.Image, Valid: true}
		qrCode = sql.NullString{String: qr.Code, Valid: qr.Code != ""}
		qrIssuedAt = sql.NullTime{Time: qr.IssuedAt, Valid: true}
		qrExpiresAt = sql.NullTime{Time: qr.ExpiresAt, Valid: true}
	}

	err := s.db.QueryRowContext(ctx, query,
		conn.Name,
		conn.OwnerID,
		string(conn.State.StoreStatus()),
		profileName,
		contact,
		avatarURL,
		avatarData,
		NullTime(conn.ConnectedAt),
		qrImage,
		qrCode,
		qrIssuedAt,
		qrExpiresAt,
		conn.CreatedAt,
		conn.UpdatedAt,
	).Scan(&conn.ID)
	if err != nil && isUniqueViolation(err) {
		return domain.ErrAlreadyExists
	}
	return err
}

// Get retrieves a connection by ID
func (s *ConnectionStore) Get(ctx context.Context, id string) (*domain.Connection, error) {
	query := `SELECT ` + connectionColumns + ` FROM connections WHERE id = $1`
	return s.scanOne(s.db.QueryRowContext(ctx, query, id))
}

// GetByName retrieves a connection by its provider name
func (s *ConnectionStore) GetByName(ctx context.Context, name string) (*domain.Connection, error) {
	query := `SELECT ` + connectionColumns + ` FROM connections WHERE name = $1`
	return s.scanOne(s.db.QueryRowContext(ctx, query, name))
}

// ListByOwner retrieves all connections of one owner, newest first
func (s *ConnectionStore) ListByOwner(ctx context.Context, ownerID string) ([]*domain.Connection, error) {
	query := `SELECT ` + connectionColumns + ` FROM connections WHERE owner_id = $1 ORDER BY created_at DESC`
	rows, err := s.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return s.scanAll(rows)
}

// List retrieves all connections, newest first
func (s *ConnectionStore) List(ctx context.Context) ([]*domain.Connection, error) {
	query := `SELECT ` + connectionColumns + ` FROM connections ORDER BY created_at DESC`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return s.scanAll(rows)
}

// Update applies a partial update; untouched fields keep their values
func (s *ConnectionStore) Update(ctx context.Context, id string, upd domain.ConnectionUpdate) error {
	if upd.Empty() {
		return nil
	}

	var (
		sets []string
		args []any
	)
	add := func(expr string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf(expr, len(args)))
	}

	if upd.Status != nil {
		add("status = $%d", string(*upd.Status))
	}
	if p := upd.Profile; p != nil {
		add("whatsapp_profile_name = $%d", p.DisplayName)
		add("whatsapp_contact = $%d", p.Contact)
		add("whatsapp_avatar_url = $%d", p.AvatarURL)
		add("whatsapp_avatar_data = $%d", sql.NullString{String: p.AvatarData, Valid: p.AvatarData != ""})
	}
	if upd.ClearProfile {
		sets = append(sets,
			"whatsapp_profile_name = NULL",
			"whatsapp_contact = NULL",
			"whatsapp_avatar_url = NULL",
			"whatsapp_avatar_data = NULL",
		)
	}
	if upd.ConnectedAt != nil {
		add("whatsapp_connected_at = $%d", *upd.ConnectedAt)
	}
	if upd.ClearConnectedAt {
		sets = append(sets, "whatsapp_connected_at = NULL")
	}
	if qr := upd.QR; qr != nil {
		add("qr_image = $%d", qr.Image)
		add("qr_code = $%d", sql.NullString{String: qr.Code, Valid: qr.Code != ""})
		add("qr_issued_at = $%d", qr.IssuedAt)
		add("qr_expires_at = $%d", qr.ExpiresAt)
	}
	if upd.ClearQR {
		sets = append(sets,
			"qr_image = NULL",
			"qr_code = NULL",
			"qr_issued_at = NULL",
			"qr_expires_at = NULL",
		)
	}

	add("updated_at = $%d", time.Now())

	args = append(args, id)
	query := fmt.Sprintf("UPDATE connections SET %s WHERE id = $%d",
		strings.Join(sets, ", "), len(args))

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Delete deletes a connection
func (s *ConnectionStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM connections WHERE id = $1`, id)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *ConnectionStore) scanOne(row rowScanner) (*domain.Connection, error) {
	var (
		conn                                        domain.Connection
		status                                      string
		profileName, contact, avatarURL, avatarData sql.NullString
		connectedAt                                 sql.NullTime
		qrImage, qrCode                             sql.NullString
		qrIssuedAt, qrExpiresAt                     sql.NullTime
	)

	err := row.Scan(
		&conn.ID,
		&conn.Name,
		&conn.OwnerID,
		&status,
		&profileName,
		&contact,
		&avatarURL,
		&avatarData,
		&connectedAt,
		&qrImage,
		&qrCode,
		&qrIssuedAt,
		&qrExpiresAt,
		&conn.CreatedAt,
		&conn.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	conn.State = domain.StoreStatus(status).LifecycleState()
	conn.ConnectedAt = TimePtr(connectedAt)

	if profileName.Valid || contact.Valid || avatarURL.Valid {
		conn.Profile = &domain.Profile{
			DisplayName: profileName.String,
			Contact:     contact.String,
			AvatarURL:   avatarURL.String,
			AvatarData:  avatarData.String,
		}
	}
	if qrImage.Valid {
		conn.QR = &domain.QRCode{
			Image:     qrImage.String,
			Code:      qrCode.String,
			IssuedAt:  qrIssuedAt.Time,
			ExpiresAt: qrExpiresAt.Time,
		}
	}
	return &conn, nil
}

func (s *ConnectionStore) scanAll(rows *sql.Rows) ([]*domain.Connection, error) {
	var conns []*domain.Connection
	for rows.Next() {
		conn, err := s.scanOne(rows)
		if err != nil {
			return nil, err
		}
		conns = append(conns, conn)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return conns, nil
}

// isUniqueViolation detects the Postgres unique_violation error code.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
