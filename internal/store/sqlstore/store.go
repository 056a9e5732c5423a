// Package sqlstore persists users and reservations in a relational database
// through GORM. sqlite and mysql are supported.
package sqlstore

import (
	"context"
	"errors"
	"fmt"
	stdlog "log"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	appLog "parkalot/internal/log"
	"parkalot/internal/model"
	"parkalot/internal/store"
)

// Config selects the database to open.
type Config struct {
	Driver string
	DSN    string
	// Now stamps date_added and registration_date. Defaults to time.Now.
	Now func() time.Time
}

// Store implements store.Store on top of a *gorm.DB.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

var _ store.Store = (*Store)(nil)

// Open connects to the configured database and migrates the schema.
func Open(cfg Config) (*Store, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(cfg.Driver) {
	case "", "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger: logger.New(
			stdlog.New(appLogWriter{}, "", 0),
			logger.Config{
				SlowThreshold:             500 * time.Millisecond,
				LogLevel:                  logger.Warn,
				IgnoreRecordNotFoundError: true,
			},
		),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.Driver, err)
	}

	if dialector.Name() == "sqlite" {
		// sqlite serializes writers; a single connection also keeps shared
		// in-memory databases alive and consistent.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	s := &Store{db: db, now: cfg.Now}
	if s.now == nil {
		s.now = time.Now
	}
	if err := s.Migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Migrate creates or upgrades the tables.
func (s *Store) Migrate() error {
	if err := s.db.AutoMigrate(&userRow{}, &reservationRow{}); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

// appLogWriter forwards GORM's log lines to the application logger.
type appLogWriter struct{}

func (appLogWriter) Write(p []byte) (int, error) {
	appLog.Warn("gorm", "msg", strings.TrimSpace(string(p)))
	return len(p), nil
}

// User operations

func (s *Store) CreateUser(ctx context.Context, u *model.User) error {
	if u.RegistrationDate == 0 {
		u.RegistrationDate = s.now().Unix()
	}
	row := userFromModel(u)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isDuplicate(err) {
			return fmt.Errorf("user %q: %w", u.Email, store.ErrConflict)
		}
		return fmt.Errorf("create user: %w", err)
	}
	u.ID = row.ID
	return nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (*model.User, error) {
	return s.findUser(ctx, "id = ?", id)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.findUser(ctx, "email = ?", strings.ToLower(email))
}

func (s *Store) GetUserByFeedToken(ctx context.Context, token string) (*model.User, error) {
	if token == "" {
		return nil, fmt.Errorf("feed token: %w", store.ErrNotFound)
	}
	return s.findUser(ctx, "feed_token = ?", token)
}

func (s *Store) findUser(ctx context.Context, query string, arg any) (*model.User, error) {
	var row userRow
	err := s.db.WithContext(ctx).Where(query, arg).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user %v: %w", arg, store.ErrNotFound)
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return row.toModel(), nil
}

func (s *Store) UserExists(ctx context.Context, id int64) (bool, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&userRow{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, fmt.Errorf("count users: %w", err)
	}
	return n > 0, nil
}

// Reservation operations

func (s *Store) CreateReservation(ctx context.Context, r *model.Reservation) error {
	if r.Status == "" {
		r.Status = model.StatusActive
	}
	r.DateAdded = s.now().Unix()
	row := reservationFromModel(r)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("create reservation: %w", err)
	}
	r.ID = row.ID
	return nil
}

func (s *Store) UpdateReservation(ctx context.Context, r *model.Reservation) error {
	res := s.db.WithContext(ctx).Model(&reservationRow{}).Where("id = ?", r.ID).Updates(map[string]any{
		"user_id":     r.UserID,
		"start_time":  r.StartTime,
		"end_time":    r.EndTime,
		"extension":   r.Extension,
		"recurring":   r.Recurring,
		"previous_id": optionalID(r.PreviousID),
		"status":      string(r.Status),
	})
	if res.Error != nil {
		return fmt.Errorf("update reservation %d: %w", r.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		// sqlite and mysql report zero rows when nothing changed; tell that
		// apart from a missing record.
		if _, err := s.GetReservation(ctx, r.ID); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) GetReservation(ctx context.Context, id int64) (*model.Reservation, error) {
	var row reservationRow
	err := s.db.WithContext(ctx).First(&row, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("reservation %d: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("get reservation %d: %w", id, err)
	}
	return row.toModel(), nil
}

func (s *Store) ListReservations(ctx context.Context, f store.ReservationFilter) ([]model.Reservation, error) {
	q := s.db.WithContext(ctx).Model(&reservationRow{})
	if f.UserID != 0 {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.StartAfter != 0 {
		q = q.Where("start_time > ?", f.StartAfter)
	}
	if f.StartBefore != 0 {
		q = q.Where("start_time < ?", f.StartBefore)
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, 0, len(f.Statuses))
		for _, st := range f.Statuses {
			statuses = append(statuses, string(st))
		}
		q = q.Where("status IN ?", statuses)
	}

	var rows []reservationRow
	if err := q.Order("start_time ASC").Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	out := make([]model.Reservation, 0, len(rows))
	for i := range rows {
		out = append(out, *rows[i].toModel())
	}
	return out, nil
}

func (s *Store) CountReservations(ctx context.Context, userID int64) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&reservationRow{}).Where("user_id = ?", userID).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count reservations: %w", err)
	}
	return n, nil
}

func (s *Store) NextInChain(ctx context.Context, id int64) (*model.Reservation, error) {
	var row reservationRow
	err := s.db.WithContext(ctx).Where("previous_id = ?", id).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("successor of %d: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("next in chain %d: %w", id, err)
	}
	return row.toModel(), nil
}

func (s *Store) CompleteEnded(ctx context.Context, now int64) (int64, error) {
	res := s.db.WithContext(ctx).Model(&reservationRow{}).
		Where("status = ? AND end_time + extension <= ?", string(model.StatusActive), now).
		Update("status", string(model.StatusCompleted))
	if res.Error != nil {
		return 0, fmt.Errorf("complete ended reservations: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (s *Store) WithinTx(ctx context.Context, fn func(tx store.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx, now: s.now})
	})
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate entry")
}
