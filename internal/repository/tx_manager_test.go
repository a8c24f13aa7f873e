package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestWithTxCommits(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE student_courses").
		WithArgs(int64(1), 1).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	manager := NewPostgresTxManager(mock, testTZ, zap.NewNop())
	err = manager.WithTx(context.Background(), func(ctx context.Context, repos TxRepositories) error {
		ok, err := repos.Courses.Debit(ctx, 1, 1)
		require.True(t, ok)
		return err
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTxRollsBackOnError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	manager := NewPostgresTxManager(mock, testTZ, zap.NewNop())
	sentinel := errors.New("slot taken")

	err = manager.WithTx(context.Background(), func(ctx context.Context, repos TxRepositories) error {
		return sentinel
	})

	assert.ErrorIs(t, err, sentinel)
	assert.NoError(t, mock.ExpectationsWereMet())
}
