package services

import (
	"context"
	"testing"
	"time"

	"github.com/Bright-River-CGI/lifestyle-app/internal/access"
	"github.com/Bright-River-CGI/lifestyle-app/internal/clock"
	"github.com/Bright-River-CGI/lifestyle-app/internal/metrics"
	"github.com/Bright-River-CGI/lifestyle-app/internal/models"
	appredis "github.com/Bright-River-CGI/lifestyle-app/internal/redis"
	"github.com/Bright-River-CGI/lifestyle-app/internal/repository"
	"github.com/alicebob/miniredis/v2"
	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testEpoch = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

type testEnv struct {
	db      *gorm.DB
	node    *snowflake.Node
	clock   *clock.FakeClock
	policy  *access.Policy
	orders  repository.OrderRepository
	props   repository.PropRepository
	users   repository.UserRepository
	svc     OrderService
	library LibraryService

	employee Identity
	client   Identity
}

type envOption func(*OrderServiceParams)

func withLocker(l Locker, wait time.Duration) envOption {
	return func(p *OrderServiceParams) {
		p.Locker = l
		p.LockWait = wait
		p.LockTTL = time.Second
	}
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Order{}, &models.Prop{}))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	policy, err := access.New()
	require.NoError(t, err)

	env := &testEnv{
		db:     db,
		node:   node,
		clock:  clock.NewFakeClock(testEpoch),
		policy: policy,
		orders: repository.NewOrderRepository(db),
		props:  repository.NewPropRepository(db),
		users:  repository.NewUserRepository(db),
		employee: Identity{
			UserID: node.Generate(),
			Name:   "Erik Employee",
			Email:  "erik.employee@studio.test",
			Role:   models.RoleEmployee,
		},
		client: Identity{
			UserID: node.Generate(),
			Name:   "Clara Client",
			Email:  "clara@client.test",
			Role:   models.RoleClient,
		},
	}

	params := OrderServiceParams{
		Orders:  env.orders,
		Props:   env.props,
		Policy:  policy,
		IDs:     node,
		Clock:   env.clock,
		Metrics: metrics.NewOrderMetrics(prometheus.NewRegistry()),
		Logger:  zaptest.NewLogger(t),
	}
	for _, opt := range opts {
		opt(&params)
	}
	env.svc = NewOrderService(params)
	env.library = NewLibraryService(env.props, policy, node, zaptest.NewLogger(t))
	return env
}

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *appredis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := appredis.NewFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})
	return mr, client
}

func (e *testEnv) createOrder(t *testing.T, draft OrderDraft) *models.Order {
	t.Helper()
	if draft.Title == "" {
		draft.Title = "Lobby Refresh"
	}
	if draft.Brief == "" {
		draft.Brief = "Redesign the lobby furniture set"
	}
	order, err := e.svc.Create(context.Background(), e.client, draft)
	require.NoError(t, err)
	return order
}

// orderWithProductFile creates an order holding one product with one pending
// file and returns the ids involved.
func (e *testEnv) orderWithProductFile(t *testing.T) (orderID, productID, fileID snowflake.ID) {
	t.Helper()
	ctx := context.Background()

	order := e.createOrder(t, OrderDraft{Products: []ProductInput{{Name: "Lounge chair", Code: "LC-01", Type: models.ProductChair}}})
	productID = order.Products[0].ID

	order, err := e.svc.UploadProductFile(ctx, e.employee, order.ID, productID, ProductFileInput{Name: "sketch.png", Type: models.ProductFileDraft, URL: "blob:sketch"})
	require.NoError(t, err)
	return order.ID, productID, order.Products[0].Files[0].ID
}
