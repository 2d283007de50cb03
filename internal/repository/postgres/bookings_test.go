package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gocomet/tourism-transport/internal/domain/transport"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestBookingLinker_MarkTransportNeeded(t *testing.T) {
	bookingID, requestID := uuid.New(), uuid.New()

	tests := []struct {
		name      string
		setupMock func(mock sqlmock.Sqlmock)
		expectErr error
	}{
		{
			name: "linked",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("UPDATE bookings SET transport_request_id = \\$2, transport_status = \\$3").
					WithArgs(bookingID, requestID, "pending", sqlmock.AnyArg()).
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
		},
		{
			name: "unknown booking",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("UPDATE bookings").
					WillReturnResult(sqlmock.NewResult(0, 0))
			},
			expectErr: ErrBookingNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, cleanup := setupRepoTest(t)
			defer cleanup()

			tt.setupMock(mock)
			err := NewBookingLinker(db).MarkTransportNeeded(context.Background(), bookingID, requestID)

			if tt.expectErr != nil {
				assert.ErrorIs(t, err, tt.expectErr)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestBookingLinker_SyncTransportStatus(t *testing.T) {
	db, mock, cleanup := setupRepoTest(t)
	defer cleanup()
	bookingID, requestID := uuid.New(), uuid.New()

	mock.ExpectExec("UPDATE bookings SET transport_status = \\$3, updated_at = \\$4 WHERE id = \\$1 AND transport_request_id = \\$2").
		WithArgs(bookingID, requestID, "completed", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	assert.NoError(t, NewBookingLinker(db).SyncTransportStatus(context.Background(), bookingID, requestID, transport.StatusCompleted))

	mock.ExpectExec("UPDATE bookings").
		WillReturnError(errors.New("connection reset"))
	err := NewBookingLinker(db).SyncTransportStatus(context.Background(), bookingID, requestID, transport.StatusCancelled)
	assert.ErrorContains(t, err, "failed to sync booking")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRoleElevator_GrantDriverRole(t *testing.T) {
	db, mock, cleanup := setupRepoTest(t)
	defer cleanup()
	userID := uuid.New()

	mock.ExpectExec("UPDATE users SET role = CASE WHEN role = 'admin' THEN role ELSE 'driver' END").
		WithArgs(userID, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	assert.NoError(t, NewRoleElevator(db).GrantDriverRole(context.Background(), userID))

	mock.ExpectExec("UPDATE users").
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, NewRoleElevator(db).GrantDriverRole(context.Background(), uuid.New()), ErrUserNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}
