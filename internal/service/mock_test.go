package service_test

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/tuanvumaihuynh/storefront/internal/model"
	"github.com/tuanvumaihuynh/storefront/internal/repository"
	"github.com/tuanvumaihuynh/storefront/internal/storage/db"
)

// txDB runs transactions inline; repositories are mocked so no statement
// ever reaches it.
type txDB struct {
	db.DB
}

func (d txDB) WithTx(_ context.Context, fn func(db.DB) error) error {
	return fn(d)
}

type mockProductRepo struct {
	mock.Mock
}

func (m *mockProductRepo) WithDB(db.DB) repository.ProductRepository { return m }

func (m *mockProductRepo) CreateProduct(ctx context.Context, product model.Product) error {
	return m.Called(ctx, product).Error(0)
}

func (m *mockProductRepo) GetProduct(ctx context.Context, id uuid.UUID) (model.Product, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.Product), args.Error(1)
}

func (m *mockProductRepo) ListAllProducts(ctx context.Context) ([]model.Product, error) {
	args := m.Called(ctx)
	return args.Get(0).([]model.Product), args.Error(1)
}

func (m *mockProductRepo) ListTopRatedProducts(ctx context.Context, limit int32) ([]model.Product, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]model.Product), args.Error(1)
}

func (m *mockProductRepo) UpdateProduct(ctx context.Context, product model.Product, expectedVersion int64) error {
	return m.Called(ctx, product, expectedVersion).Error(0)
}

type mockOutboxRepo struct {
	mock.Mock
}

func (m *mockOutboxRepo) WithDB(db.DB) repository.OutboxMsgRepository { return m }

func (m *mockOutboxRepo) CreateOutboxMsg(ctx context.Context, params repository.CreateOutboxMsgParams) error {
	return m.Called(ctx, params).Error(0)
}

func (m *mockOutboxRepo) ListUnprocessedOutboxMsgs(ctx context.Context, params repository.ListUnprocessedOutboxMsgsParams) ([]repository.ListUnprocessedOutboxMsgsResult, error) {
	args := m.Called(ctx, params)
	return args.Get(0).([]repository.ListUnprocessedOutboxMsgsResult), args.Error(1)
}

func (m *mockOutboxRepo) BulkUpdateOutboxMsgs(ctx context.Context, params repository.BulkUpdateOutboxMsgsParams) error {
	return m.Called(ctx, params).Error(0)
}

type mockUserRepo struct {
	mock.Mock
}

func (m *mockUserRepo) CreateUser(ctx context.Context, user model.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *mockUserRepo) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	args := m.Called(ctx, email)
	return args.Get(0).(model.User), args.Error(1)
}

func topic(name string) any {
	return mock.MatchedBy(func(p repository.CreateOutboxMsgParams) bool { return p.Topic == name })
}
