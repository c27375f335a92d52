package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/model"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

func newMock(t *testing.T) (BaseRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewBaseRepository(sqlx.NewDb(db, "postgres")), mock
}

func TestMapError(t *testing.T) {
	_, isApp := apperrors.As(mapError(errors.New("x"), "client"))
	assert.False(t, isApp)

	err := mapError(&pq.Error{Code: pqUniqueViolation}, "clinic member")
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict))

	err = mapError(&pq.Error{Code: pqForeignKeyViolation}, "appointment")
	assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest))

	assert.NoError(t, mapError(nil, "client"))
}

func TestRunInTx(t *testing.T) {
	base, mock := newMock(t)
	repo := NewOutboxRepository(base)

	t.Run("commit", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO outbox_events").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := base.RunInTx(context.Background(), func(ctx context.Context) error {
			return repo.Create(ctx, &model.OutboxEvent{EventType: "CLIENT_CREATE", Payload: []byte(`{}`)})
		})
		require.NoError(t, err)
	})

	t.Run("rollback on error", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectRollback()

		boom := errors.New("boom")
		err := base.RunInTx(context.Background(), func(ctx context.Context) error {
			return boom
		})
		assert.ErrorIs(t, err, boom)
	})

	t.Run("nested reuses outer tx", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectCommit()

		err := base.RunInTx(context.Background(), func(ctx context.Context) error {
			return base.RunInTx(ctx, func(context.Context) error { return nil })
		})
		require.NoError(t, err)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository(t *testing.T) {
	base, mock := newMock(t)
	repo := NewUserRepository(base)
	ctx := context.Background()

	t.Run("create normalizes email", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO users").
			WithArgs(sqlmock.AnyArg(), "ana@example.com", "Ana", "hash", nil, model.UserStatusActive, "en", sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		user := &model.User{Email: " Ana@Example.com ", Name: "Ana", PasswordHash: "hash"}
		require.NoError(t, repo.Create(ctx, user))
		assert.NotEqual(t, uuid.Nil, user.ID)
	})

	t.Run("duplicate email is conflict", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO users").WillReturnError(&pq.Error{Code: pqUniqueViolation})

		err := repo.Create(ctx, &model.User{Email: "ana@example.com", Name: "Ana"})
		assert.True(t, apperrors.Is(err, apperrors.ErrConflict))
	})

	t.Run("missing user is not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT .* FROM users WHERE email = \\$1").
			WithArgs("nobody@example.com").
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		_, err := repo.GetByEmail(ctx, "Nobody@example.com")
		assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
	})

	t.Run("update with no rows is not found", func(t *testing.T) {
		mock.ExpectExec("UPDATE users SET password_hash").WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.UpdatePassword(ctx, uuid.New(), "hash")
		assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPermissionRepositoryGrant(t *testing.T) {
	base, mock := newMock(t)
	repo := NewPermissionRepository(base)
	cuID := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta("VALUES ($1, $2, $3, $4, NOW()), ($5, $6, $7, $8, NOW())") + ".*ON CONFLICT").
		WithArgs(sqlmock.AnyArg(), cuID, model.ModuleClients, model.ActionView,
			sqlmock.AnyArg(), cuID, model.ModuleClients, model.ActionEdit).
		WillReturnResult(sqlmock.NewResult(0, 2))

	err := repo.Grant(context.Background(), cuID,
		model.Grant{Module: model.ModuleClients, Action: model.ActionView},
		model.Grant{Module: model.ModuleClients, Action: model.ActionEdit},
	)
	require.NoError(t, err)

	// no pairs means no statement
	require.NoError(t, repo.Grant(context.Background(), cuID))

	mock.ExpectQuery("SELECT module, action FROM permissions").
		WithArgs(cuID).
		WillReturnRows(sqlmock.NewRows([]string{"module", "action"}).AddRow("clients", "view"))

	grants, err := repo.List(context.Background(), cuID)
	require.NoError(t, err)
	assert.Equal(t, []model.Grant{{Module: model.ModuleClients, Action: model.ActionView}}, grants)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepositoryHasOverlap(t *testing.T) {
	base, mock := newMock(t)
	repo := NewAppointmentRepository(base)

	clinicID, proID := uuid.New(), uuid.New()
	start := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	assert.Equal(t, "'cancelled'", freeSlotStatuses)

	mock.ExpectQuery(`status NOT IN \('cancelled'\)`).
		WithArgs(clinicID, proID, start, end, nil).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	overlap, err := repo.HasOverlap(context.Background(), clinicID, proID, start, end, nil)
	require.NoError(t, err)
	assert.True(t, overlap)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepositoryListFilters(t *testing.T) {
	base, mock := newMock(t)
	repo := NewAppointmentRepository(base)

	clinicID, proID := uuid.New(), uuid.New()
	from := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM appointments WHERE clinic_id = $1 AND professional_id = $2 AND start_time >= $3 AND start_time < $4")).
		WithArgs(clinicID, proID, from, to).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY start_time LIMIT $5 OFFSET $6")).
		WithArgs(clinicID, proID, from, to, 20, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "clinic_id", "status", "start_time", "end_time"}).
			AddRow(uuid.NewString(), clinicID.String(), "scheduled", from.Add(time.Hour), from.Add(2*time.Hour)))

	items, total, err := repo.List(context.Background(), &model.AppointmentFilters{
		ClinicID:       clinicID,
		ProfessionalID: &proID,
		From:           &from,
		To:             &to,
		ListParams:     model.ListParams{Page: 1, PageSize: 20},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, items, 1)
	assert.Equal(t, model.AppointmentStatusScheduled, items[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClientRepositoryListSearch(t *testing.T) {
	base, mock := newMock(t)
	repo := NewClientRepository(base)
	clinicID := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta(`status <> 'archived' AND (name ILIKE $2 ESCAPE '\' OR email ILIKE $2 ESCAPE '\' OR phone ILIKE $2 ESCAPE '\')`)).
		WithArgs(clinicID, "%ana%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery("SELECT id, clinic_id, name").
		WithArgs(clinicID, "%ana%").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	items, total, err := repo.List(context.Background(), &model.ClientFilters{
		ClinicID:   clinicID,
		ListParams: model.ListParams{Search: "ana"},
	})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, items)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestContainsPatternEscapesWildcards(t *testing.T) {
	tests := map[string]string{
		"ana": `%ana%`,
		"_":   `%\_%`,
		"50%": `%50\%%`,
		`a\b`: `%a\\b%`,
		"":    `%%`,
	}
	for term, want := range tests {
		assert.Equal(t, want, containsPattern(term), term)
	}
}

func TestClientRepositorySearchIsLiteral(t *testing.T) {
	base, mock := newMock(t)
	repo := NewClientRepository(base)
	clinicID := uuid.New()

	mock.ExpectQuery("SELECT COUNT").
		WithArgs(clinicID, `%\_%`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery("SELECT id, clinic_id, name").
		WithArgs(clinicID, `%\_%`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, _, err := repo.List(context.Background(), &model.ClientFilters{
		ClinicID:   clinicID,
		ListParams: model.ListParams{Search: "_"},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMemberRepositoryCountActiveOwners(t *testing.T) {
	base, mock := newMock(t)
	repo := NewMemberRepository(base)
	clinicID := uuid.New()

	mock.ExpectQuery("FOR UPDATE").
		WithArgs(clinicID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(uuid.NewString()).AddRow(uuid.NewString()))

	n, err := repo.CountActiveOwners(context.Background(), clinicID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositorySummary(t *testing.T) {
	base, mock := newMock(t)
	repo := NewPaymentRepository(base)
	clinicID := uuid.New()

	mock.ExpectQuery("GROUP BY currency").
		WithArgs(clinicID).
		WillReturnRows(sqlmock.NewRows([]string{"currency", "succeeded_cents", "refunded_cents", "payment_count"}).
			AddRow("brl", 50000, 5000, 4).
			AddRow("usd", 1200, 0, 1))

	summary, err := repo.Summary(context.Background(), clinicID, nil, nil)
	require.NoError(t, err)
	require.Len(t, summary.Totals, 2)
	assert.Equal(t, model.CurrencyTotal{Currency: "brl", SucceededCents: 50000, RefundedCents: 5000, NetCents: 45000, PaymentCount: 4}, summary.Totals[0])
	assert.Equal(t, model.CurrencyTotal{Currency: "usd", SucceededCents: 1200, NetCents: 1200, PaymentCount: 1}, summary.Totals[1])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxRepository(t *testing.T) {
	base, mock := newMock(t)
	repo := NewOutboxRepository(base)
	ctx := context.Background()

	assert.Error(t, repo.Create(ctx, nil))
	assert.Error(t, repo.Create(ctx, &model.OutboxEvent{EventType: "X"}))

	id := uuid.New()
	mock.ExpectQuery("FOR UPDATE SKIP LOCKED").
		WithArgs(10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "event_type", "payload", "status", "retry_count"}).
			AddRow(id.String(), "CLIENT_CREATE", []byte(`{"a":1}`), "pending", 0))

	events, err := repo.GetPendingEventsWithLock(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, id, events[0].ID)
	assert.JSONEq(t, `{"a":1}`, string(events[0].Payload))

	retryAt := time.Now().Add(time.Minute)
	mock.ExpectExec("UPDATE outbox_events").
		WithArgs(id, "retry", 1, "timeout", retryAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.MarkRetry(ctx, id, 1, "timeout", retryAt))

	mock.ExpectExec("UPDATE outbox_events").
		WithArgs(id, "failed", 3, "timeout", nil).
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.Error(t, repo.MarkFailed(ctx, id, 3, "timeout"), "processed rows are never downgraded")

	mock.ExpectExec("DELETE FROM outbox_events").WillReturnResult(sqlmock.NewResult(0, 7))
	n, err := repo.DeleteProcessedBefore(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvitationRepositoryForUpdate(t *testing.T) {
	base, mock := newMock(t)
	repo := NewInvitationRepository(base)

	mock.ExpectQuery("WHERE token_hash = \\$1 FOR UPDATE").
		WithArgs("abc").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "role"}).AddRow(uuid.NewString(), "bo@example.com", "admin"))

	inv, err := repo.GetByTokenHash(context.Background(), "abc", true)
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, inv.Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}
