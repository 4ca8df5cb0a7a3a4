package report

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound signals that the requested report does not exist.
	ErrNotFound = errors.New("report: not found")
	// ErrDuplicate signals a uniqueness violation on insert.
	ErrDuplicate = errors.New("report: duplicate")
)

// Repository is the item-store boundary consumed by the matching, claim,
// settlement and privacy services.
type Repository interface {
	GetLost(ctx context.Context, id string) (LostItem, error)
	GetFound(ctx context.Context, id string) (FoundItem, error)
	ListUnresolvedLost(ctx context.Context) ([]LostItem, error)
	ListOpenFound(ctx context.Context) ([]FoundItem, error)
	ListFound(ctx context.Context, filters Filters) ([]FoundItem, error)
	QuestionsForItem(ctx context.Context, foundItemID string) ([]SecurityQuestion, error)
	ListRecipients(ctx context.Context, excludeEmail string) ([]string, error)
	CreateLost(ctx context.Context, params CreateLostParams) (LostItem, error)
	CreateFound(ctx context.Context, params CreateFoundParams) (FoundItem, error)
}

// CreateLostParams enumerates the fields required to file a lost report.
type CreateLostParams struct {
	Title         string
	Description   string
	Category      string
	Location      string
	Color         string
	DateLost      time.Time
	ImageRef      *string
	ReporterEmail string
}

// QuestionParams carries one security question with its plaintext canonical
// answer; the answer is hashed before it is written.
type QuestionParams struct {
	Question string
	Answer   string
	Kind     AnswerKind
}

// CreateFoundParams enumerates the fields required to file a found report.
type CreateFoundParams struct {
	Title            string
	Description      string
	Category         string
	Location         string
	Color            string
	CurrentLocation  string
	DateFound        time.Time
	ImageRef         *string
	FinderEmail      string
	FinderPhone      *string
	PrivacyExpiresAt *time.Time
	Questions        []QuestionParams
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const lostColumns = `id, title, description, category, location, color, date_lost, image_ref, reporter_email, resolved, created_at`

const foundColumns = `f.id, f.title, f.description, f.category, f.location, f.color, f.current_location,
       f.date_found, f.image_ref, f.finder_email, COALESCE(u.full_name, ''), f.finder_phone,
       f.status::text, f.visibility::text, f.privacy_expires_at, f.claimed_at, f.created_at`

const foundFrom = `FROM found_items f LEFT JOIN users u ON u.email = f.finder_email`

func (r *PGRepository) GetLost(ctx context.Context, id string) (LostItem, error) {
	query := fmt.Sprintf(`SELECT %s FROM lost_items WHERE id = $1`, lostColumns)
	item, err := scanLost(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return LostItem{}, ErrNotFound
		}
		return LostItem{}, fmt.Errorf("report: get lost item: %w", err)
	}
	return item, nil
}

func (r *PGRepository) GetFound(ctx context.Context, id string) (FoundItem, error) {
	query := fmt.Sprintf(`SELECT %s %s WHERE f.id = $1`, foundColumns, foundFrom)
	item, err := scanFound(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return FoundItem{}, ErrNotFound
		}
		return FoundItem{}, fmt.Errorf("report: get found item: %w", err)
	}
	return item, nil
}

func (r *PGRepository) ListUnresolvedLost(ctx context.Context) ([]LostItem, error) {
	query := fmt.Sprintf(`SELECT %s FROM lost_items WHERE NOT resolved ORDER BY created_at DESC`, lostColumns)
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("report: list unresolved lost: %w", err)
	}
	defer rows.Close()

	items := make([]LostItem, 0, 64)
	for rows.Next() {
		item, err := scanLost(rows)
		if err != nil {
			return nil, fmt.Errorf("report: scan lost item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("report: iterate lost items: %w", err)
	}
	return items, nil
}

func (r *PGRepository) ListOpenFound(ctx context.Context) ([]FoundItem, error) {
	query := fmt.Sprintf(`SELECT %s %s WHERE f.status = 'open' ORDER BY f.created_at DESC`, foundColumns, foundFrom)
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("report: list open found: %w", err)
	}
	defer rows.Close()
	return collectFound(rows)
}

// ListFound applies the structured filter predicates. Every condition binds
// its value as a parameter.
func (r *PGRepository) ListFound(ctx context.Context, filters Filters) ([]FoundItem, error) {
	if filters.Limit <= 0 || filters.Limit > 500 {
		filters.Limit = 100
	}

	where := []string{"f.status = 'open'"}
	args := []any{}

	if filters.Category != "" {
		where = append(where, fmt.Sprintf("LOWER(f.category) = LOWER($%d)", len(args)+1))
		args = append(args, filters.Category)
	}
	if filters.Location != "" {
		where = append(where, fmt.Sprintf("LOWER(f.location) = LOWER($%d)", len(args)+1))
		args = append(args, filters.Location)
	}
	if filters.Color != "" {
		where = append(where, fmt.Sprintf("LOWER(f.color) = LOWER($%d)", len(args)+1))
		args = append(args, filters.Color)
	}
	if filters.Search != "" {
		n := len(args) + 1
		where = append(where, fmt.Sprintf("(f.title ILIKE $%d OR f.description ILIKE $%d)", n, n))
		args = append(args, "%"+filters.Search+"%")
	}
	if filters.OnlyPublic {
		where = append(where, "f.visibility = 'public'")
	}

	query := fmt.Sprintf(`SELECT %s %s WHERE %s ORDER BY f.created_at DESC LIMIT %d`,
		foundColumns, foundFrom, strings.Join(where, " AND "), filters.Limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("report: list found: %w", err)
	}
	defer rows.Close()
	return collectFound(rows)
}

func (r *PGRepository) QuestionsForItem(ctx context.Context, foundItemID string) ([]SecurityQuestion, error) {
	const query = `
		SELECT id, found_item_id, question, answer_digest, kind::text, position
		FROM security_questions
		WHERE found_item_id = $1
		ORDER BY position, id
	`
	rows, err := r.pool.Query(ctx, query, foundItemID)
	if err != nil {
		return nil, fmt.Errorf("report: list questions: %w", err)
	}
	defer rows.Close()

	questions := make([]SecurityQuestion, 0, 4)
	for rows.Next() {
		var q SecurityQuestion
		if err := rows.Scan(&q.ID, &q.FoundItemID, &q.Question, &q.AnswerDigest, &q.Kind, &q.Position); err != nil {
			return nil, fmt.Errorf("report: scan question: %w", err)
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("report: iterate questions: %w", err)
	}
	return questions, nil
}

// ListRecipients returns every registered identity except excludeEmail.
// Used by the privacy sweep fan-out.
func (r *PGRepository) ListRecipients(ctx context.Context, excludeEmail string) ([]string, error) {
	const query = `SELECT email FROM users WHERE email <> $1 ORDER BY email`
	rows, err := r.pool.Query(ctx, query, excludeEmail)
	if err != nil {
		return nil, fmt.Errorf("report: list recipients: %w", err)
	}
	defer rows.Close()

	recipients := make([]string, 0, 32)
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, fmt.Errorf("report: scan recipient: %w", err)
		}
		recipients = append(recipients, email)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("report: iterate recipients: %w", err)
	}
	return recipients, nil
}

func (r *PGRepository) CreateLost(ctx context.Context, params CreateLostParams) (LostItem, error) {
	if params.Title == "" || params.ReporterEmail == "" {
		return LostItem{}, fmt.Errorf("report: lost item requires title and reporter email")
	}

	query := fmt.Sprintf(`
		INSERT INTO lost_items (id, title, description, category, location, color, date_lost, image_ref, reporter_email)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING %s
	`, lostColumns)

	item, err := scanLost(r.pool.QueryRow(ctx, query,
		uuid.NewString(),
		params.Title,
		params.Description,
		params.Category,
		params.Location,
		params.Color,
		params.DateLost,
		params.ImageRef,
		params.ReporterEmail,
	))
	if err != nil {
		return LostItem{}, fmt.Errorf("report: create lost item: %w", mapPgError(err))
	}
	return item, nil
}

func (r *PGRepository) CreateFound(ctx context.Context, params CreateFoundParams) (FoundItem, error) {
	if params.Title == "" || params.FinderEmail == "" {
		return FoundItem{}, fmt.Errorf("report: found item requires title and finder email")
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return FoundItem{}, fmt.Errorf("report: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	visibility := VisibilityPublic
	if params.PrivacyExpiresAt != nil {
		visibility = VisibilityPrivate
	}

	id := uuid.NewString()
	const insertSQL = `
		INSERT INTO found_items (id, title, description, category, location, color, current_location,
			date_found, image_ref, finder_email, finder_phone, status, visibility, privacy_expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 'open', $12, $13)
	`
	if _, err := tx.Exec(ctx, insertSQL,
		id,
		params.Title,
		params.Description,
		params.Category,
		params.Location,
		params.Color,
		params.CurrentLocation,
		params.DateFound,
		params.ImageRef,
		params.FinderEmail,
		params.FinderPhone,
		visibility,
		params.PrivacyExpiresAt,
	); err != nil {
		return FoundItem{}, fmt.Errorf("report: create found item: %w", mapPgError(err))
	}

	for i, q := range params.Questions {
		digest, err := HashAnswer(q.Answer)
		if err != nil {
			return FoundItem{}, err
		}
		kind := q.Kind
		if kind == "" {
			kind = AnswerFreeText
		}
		const questionSQL = `
			INSERT INTO security_questions (id, found_item_id, question, answer_digest, kind, position)
			VALUES ($1, $2, $3, $4, $5, $6)
		`
		if _, err := tx.Exec(ctx, questionSQL, uuid.NewString(), id, q.Question, digest, kind, i); err != nil {
			return FoundItem{}, fmt.Errorf("report: create question: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return FoundItem{}, fmt.Errorf("report: commit found item: %w", err)
	}

	return r.GetFound(ctx, id)
}

func collectFound(rows pgx.Rows) ([]FoundItem, error) {
	items := make([]FoundItem, 0, 64)
	for rows.Next() {
		item, err := scanFound(rows)
		if err != nil {
			return nil, fmt.Errorf("report: scan found item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("report: iterate found items: %w", err)
	}
	return items, nil
}

func scanLost(row pgx.Row) (LostItem, error) {
	var item LostItem
	return item, row.Scan(
		&item.ID,
		&item.Title,
		&item.Description,
		&item.Category,
		&item.Location,
		&item.Color,
		&item.DateLost,
		&item.ImageRef,
		&item.ReporterEmail,
		&item.Resolved,
		&item.CreatedAt,
	)
}

func scanFound(row pgx.Row) (FoundItem, error) {
	var item FoundItem
	return item, row.Scan(
		&item.ID,
		&item.Title,
		&item.Description,
		&item.Category,
		&item.Location,
		&item.Color,
		&item.CurrentLocation,
		&item.DateFound,
		&item.ImageRef,
		&item.FinderEmail,
		&item.FinderName,
		&item.FinderPhone,
		&item.Status,
		&item.Visibility,
		&item.PrivacyExpiresAt,
		&item.ClaimedAt,
		&item.CreatedAt,
	)
}

func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicate
	}
	return err
}
