package store

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/Priya8975/forge-storefront/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/*.up.sql
var migrationFiles embed.FS

// Migrations is the schema shipped with the binary.
func Migrations() fs.FS {
	sub, _ := fs.Sub(migrationFiles, "migrations")
	return sub
}

// DBPool is the subset of *pgxpool.Pool the store uses.
type DBPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

type PostgresStore struct {
	pool DBPool
}

func NewPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// NewPostgresFromPool wraps an existing pool.
func NewPostgresFromPool(pool DBPool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Close(context.Context) error {
	s.pool.Close()
	return nil
}

// RunMigrations executes every .up.sql file in migrations, in name order,
// skipping versions already recorded in schema_migrations.
func (s *PostgresStore) RunMigrations(ctx context.Context, migrations fs.FS) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(255) PRIMARY KEY,
			applied_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("creating migrations table: %w", err)
	}

	var files []string
	err = fs.WalkDir(migrations, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".up.sql") {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("reading migrations: %w", err)
	}

	sort.Strings(files)

	for _, p := range files {
		version := path.Base(p)

		var applied bool
		err := s.pool.QueryRow(ctx,
			"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)",
			version,
		).Scan(&applied)
		if err != nil {
			return fmt.Errorf("checking migration %s: %w", version, err)
		}
		if applied {
			continue
		}

		sql, err := fs.ReadFile(migrations, p)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", version, err)
		}

		if _, err := s.pool.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("executing migration %s: %w", version, err)
		}

		if _, err := s.pool.Exec(ctx,
			"INSERT INTO schema_migrations (version) VALUES ($1)",
			version,
		); err != nil {
			return fmt.Errorf("recording migration %s: %w", version, err)
		}
	}

	return nil
}

func (s *PostgresStore) CreateWebhookEvent(ctx context.Context, ev *domain.WebhookEvent) error {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return fmt.Errorf("encoding payload: %w", err)
	}

	err = s.pool.QueryRow(ctx, `
		INSERT INTO webhook_events (event, form_id, submission_id, payload, received_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id::text, created_at, updated_at
	`, ev.Event, ev.FormID, ev.SubmissionID, payload, ev.ReceivedAt).Scan(
		&ev.ID, &ev.CreatedAt, &ev.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting webhook event: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateSubmission(ctx context.Context, sub *domain.Submission) error {
	data, err := json.Marshal(sub.Data)
	if err != nil {
		return fmt.Errorf("encoding submission data: %w", err)
	}

	err = s.pool.QueryRow(ctx, `
		INSERT INTO submissions (submission_id, form_id, workspace_id, data, received_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id::text, created_at
	`, sub.SubmissionID, sub.FormID, sub.WorkspaceID, data, sub.ReceivedAt).Scan(
		&sub.ID, &sub.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting submission: %w", err)
	}
	return nil
}

const eventColumns = `id::text, event, form_id, submission_id, payload, received_at, created_at, updated_at`

func scanEvent(row pgx.Row) (*domain.WebhookEvent, error) {
	var (
		ev      domain.WebhookEvent
		payload []byte
	)
	err := row.Scan(&ev.ID, &ev.Event, &ev.FormID, &ev.SubmissionID, &payload,
		&ev.ReceivedAt, &ev.CreatedAt, &ev.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(payload, &ev.Payload); err != nil {
		return nil, fmt.Errorf("decoding payload: %w", err)
	}
	return &ev, nil
}

func (s *PostgresStore) GetWebhookEvent(ctx context.Context, id string) (*domain.WebhookEvent, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("querying webhook event: %w", ErrNotFound)
	}

	ev, err := scanEvent(s.pool.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM webhook_events WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("querying webhook event: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying webhook event: %w", err)
	}
	return ev, nil
}

func (s *PostgresStore) ListWebhookEvents(ctx context.Context, f EventFilter) ([]domain.WebhookEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM webhook_events`
	var (
		conds []string
		args  []any
	)

	if f.Event != "" {
		args = append(args, f.Event)
		conds = append(conds, fmt.Sprintf("event = $%d", len(args)))
	}
	if f.FormID != "" {
		args = append(args, f.FormID)
		conds = append(conds, fmt.Sprintf("form_id = $%d", len(args)))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	args = append(args, eventLimit(f.Limit))
	query += fmt.Sprintf(" ORDER BY received_at DESC LIMIT $%d", len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying webhook events: %w", err)
	}
	defer rows.Close()

	events := []domain.WebhookEvent{}
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning webhook event: %w", err)
		}
		events = append(events, *ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating webhook events: %w", err)
	}
	return events, nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, u *domain.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}

	err := s.pool.QueryRow(ctx, `
		INSERT INTO users (id, name, email, password)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`, u.ID, u.Name, u.Email, u.PasswordHash).Scan(&u.CreatedAt, &u.UpdatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("inserting user %s: %w", u.Email, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("inserting user: %w", err)
	}
	return nil
}

const userColumns = `id::text, name, email, password, created_at, updated_at`

func (s *PostgresStore) getUser(ctx context.Context, where string, arg any) (*domain.User, error) {
	var u domain.User
	err := s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE `+where+` = $1`, arg,
	).Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	u, err := s.getUser(ctx, "email", email)
	if err != nil {
		return nil, fmt.Errorf("querying user by email: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("querying user: %w", ErrNotFound)
	}
	u, err := s.getUser(ctx, "id", id)
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}
	return u, nil
}

const productColumns = `id, pid, slug, title, category, gender, color, color_hex, tone,
	size_options, price, sale_price, rating, reviews, is_new, src, gallery, created_at, updated_at`

func scanProduct(row pgx.Row) (*domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.PID, &p.Slug, &p.Title, &p.Category, &p.Gender,
		&p.Color, &p.ColorHex, &p.Tone, &p.SizeOptions, &p.Price, &p.SalePrice,
		&p.Rating, &p.Reviews, &p.IsNew, &p.Src, &p.Gallery, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PostgresStore) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+productColumns+` FROM products ORDER BY pid`)
	if err != nil {
		return nil, fmt.Errorf("querying products: %w", err)
	}
	defer rows.Close()

	products := []domain.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning product: %w", err)
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating products: %w", err)
	}
	return products, nil
}

func (s *PostgresStore) getProduct(ctx context.Context, where, arg string) (*domain.Product, error) {
	p, err := scanProduct(s.pool.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE `+where+` = $1`, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

func (s *PostgresStore) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	p, err := s.getProduct(ctx, "id", id)
	if err != nil {
		return nil, fmt.Errorf("querying product: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) GetProductBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	p, err := s.getProduct(ctx, "slug", slug)
	if err != nil {
		return nil, fmt.Errorf("querying product by slug: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) UpsertProduct(ctx context.Context, p *domain.Product) error {
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	_, err := s.pool.Exec(ctx, `
		INSERT INTO products (id, pid, slug, title, category, gender, color, color_hex, tone,
			size_options, price, sale_price, rating, reviews, is_new, src, gallery, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		ON CONFLICT (id) DO UPDATE SET
			pid = EXCLUDED.pid, slug = EXCLUDED.slug, title = EXCLUDED.title,
			category = EXCLUDED.category, gender = EXCLUDED.gender, color = EXCLUDED.color,
			color_hex = EXCLUDED.color_hex, tone = EXCLUDED.tone, size_options = EXCLUDED.size_options,
			price = EXCLUDED.price, sale_price = EXCLUDED.sale_price, rating = EXCLUDED.rating,
			reviews = EXCLUDED.reviews, is_new = EXCLUDED.is_new, src = EXCLUDED.src,
			gallery = EXCLUDED.gallery, updated_at = EXCLUDED.updated_at
	`, p.ID, p.PID, p.Slug, p.Title, p.Category, p.Gender, p.Color, p.ColorHex, p.Tone,
		p.SizeOptions, p.Price, p.SalePrice, p.Rating, p.Reviews, p.IsNew, p.Src, p.Gallery,
		p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upserting product %s: %w", p.ID, err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
