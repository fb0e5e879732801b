package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Bright-River-CGI/lifestyle-app/internal/models"
	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestCreateStartsAsEmptyDraft(t *testing.T) {
	env := newTestEnv(t)

	order, err := env.svc.Create(context.Background(), env.client, OrderDraft{
		Title: "Lobby Refresh",
		Brief: "Redesign the lobby furniture set",
	})
	require.NoError(t, err)

	assert.Equal(t, models.OrderDraft, order.Status)
	assert.Empty(t, order.Products)
	assert.Empty(t, order.Files)
	assert.NotNil(t, order.Products)
	assert.NotNil(t, order.Files)
	assert.Equal(t, order.CreatedAt, order.UpdatedAt)
	assert.Equal(t, int64(1), order.Version)
	assert.Equal(t, env.client.UserID, order.CreatedBy)

	stored, err := env.svc.Get(context.Background(), env.employee, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "Lobby Refresh", stored.Title)
	assert.True(t, stored.CreatedAt.Equal(stored.UpdatedAt))
}

func TestCreateValidatesTitleAndBrief(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.Create(context.Background(), env.client, OrderDraft{Title: " ab ", Brief: "too short"})
	require.ErrorIs(t, err, ErrValidation)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	fields := make([]string, 0, len(verr.Errors))
	for _, f := range verr.Errors {
		fields = append(fields, f.Field)
	}
	assert.ElementsMatch(t, []string{"title", "brief"}, fields)

	orders, err := env.svc.List(context.Background(), env.client)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestCreateValidatesInitialProducts(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.Create(context.Background(), env.client, OrderDraft{
		Title:    "Lobby Refresh",
		Brief:    "Redesign the lobby furniture set",
		Products: []ProductInput{{Name: "Chair"}, {Name: "Shelf", Code: "S-1", Type: "spaceship"}},
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Errors, 2)
}

func TestCreateIssuesUniqueIDs(t *testing.T) {
	env := newTestEnv(t)

	seen := map[snowflake.ID]bool{}
	for i := 0; i < 50; i++ {
		order := env.createOrder(t, OrderDraft{})
		require.False(t, seen[order.ID], "id %s issued twice", order.ID)
		seen[order.ID] = true
	}

	orders, err := env.svc.List(context.Background(), env.client)
	require.NoError(t, err)
	require.Len(t, orders, 50)
	for i := 1; i < len(orders); i++ {
		assert.Less(t, orders[i-1].ID, orders[i].ID, "list keeps insertion order")
	}
}

func TestCreateAssignsPendingToProductsAndFiles(t *testing.T) {
	env := newTestEnv(t)

	order := env.createOrder(t, OrderDraft{
		Products: []ProductInput{{Name: "Lounge chair", Code: "LC-01"}},
		Files:    []OrderFileInput{{Name: "brief.pdf", Size: 2048, Type: "application/pdf", URL: "blob:brief"}},
	})

	require.Len(t, order.Products, 1)
	assert.Equal(t, models.ProductPending, order.Products[0].Status)
	assert.Equal(t, models.ProductOther, order.Products[0].Type)
	require.Len(t, order.Files, 1)
	assert.Equal(t, models.FilePending, order.Files[0].Status)
	assert.NotZero(t, order.Files[0].ID)
}

func TestCreateSnapshotsSelectedProps(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	n, err := env.library.Seed(ctx, DefaultProps)
	require.NoError(t, err)
	require.Equal(t, len(DefaultProps), n)

	lamps, err := env.library.Search(ctx, env.client, "lamp")
	require.NoError(t, err)
	require.Len(t, lamps, 1)

	order := env.createOrder(t, OrderDraft{PropIDs: []snowflake.ID{lamps[0].ID}})
	require.Len(t, order.SelectedProps, 1)
	assert.Equal(t, "Floor Lamp", order.SelectedProps[0].Name)

	_, err = env.svc.Create(ctx, env.client, OrderDraft{
		Title:   "Lobby Refresh",
		Brief:   "Redesign the lobby furniture set",
		PropIDs: []snowflake.ID{env.node.Generate()},
	})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestUpdateReflectsPatchAndAdvancesUpdatedAt(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.createOrder(t, OrderDraft{})

	// The clock does not move: updatedAt must still strictly increase.
	updated, err := env.svc.Update(ctx, env.employee, order.ID, OrderPatch{Title: ptr("Lobby Refresh II")})
	require.NoError(t, err)
	assert.Equal(t, "Lobby Refresh II", updated.Title)
	assert.Equal(t, order.Brief, updated.Brief)
	assert.Equal(t, order.Status, updated.Status)
	assert.True(t, updated.UpdatedAt.After(order.UpdatedAt))
	assert.True(t, order.CreatedAt.Equal(updated.CreatedAt))
	assert.Equal(t, int64(2), updated.Version)

	again, err := env.svc.Update(ctx, env.employee, order.ID, OrderPatch{Status: ptr(models.OrderInProgress)})
	require.NoError(t, err)
	assert.Equal(t, models.OrderInProgress, again.Status)
	assert.Equal(t, "Lobby Refresh II", again.Title)
	assert.True(t, again.UpdatedAt.After(updated.UpdatedAt))

	stored, err := env.svc.Get(ctx, env.client, order.ID)
	require.NoError(t, err)
	assert.True(t, stored.UpdatedAt.Equal(again.UpdatedAt))
	assert.Equal(t, int64(3), stored.Version)
}

func TestUpdateUsesClockWhenItMovesForward(t *testing.T) {
	env := newTestEnv(t)
	order := env.createOrder(t, OrderDraft{})

	env.clock.Advance(time.Hour)
	updated, err := env.svc.Update(context.Background(), env.employee, order.ID, OrderPatch{Brief: ptr("A longer and better brief")})
	require.NoError(t, err)
	assert.True(t, updated.UpdatedAt.Equal(testEpoch.Add(time.Hour)))
}

func TestCompletedOrderCanBeReopened(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.createOrder(t, OrderDraft{})

	for _, status := range []models.OrderStatus{models.OrderCompleted, models.OrderDraft, models.OrderReview} {
		updated, err := env.svc.Update(ctx, env.employee, order.ID, OrderPatch{Status: ptr(status)})
		require.NoError(t, err)
		assert.Equal(t, status, updated.Status)
	}
}

func TestUpdateRejectsUnknownAndLegacyStatus(t *testing.T) {
	env := newTestEnv(t)
	order := env.createOrder(t, OrderDraft{})

	for _, status := range []models.OrderStatus{models.OrderSubmitted, "archived"} {
		_, err := env.svc.Update(context.Background(), env.employee, order.ID, OrderPatch{Status: ptr(status)})
		assert.ErrorIs(t, err, ErrValidation, status)
	}
}

func TestUpdateMissingOrderIsNotFound(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.Update(context.Background(), env.employee, env.node.Generate(), OrderPatch{Title: ptr("Anything")})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateWithStaleVersionConflicts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.createOrder(t, OrderDraft{})

	_, err := env.svc.Update(ctx, env.employee, order.ID, OrderPatch{Title: ptr("First writer"), ExpectedVersion: ptr(int64(1))})
	require.NoError(t, err)

	_, err = env.svc.Update(ctx, env.employee, order.ID, OrderPatch{Title: ptr("Second writer"), ExpectedVersion: ptr(int64(1))})
	assert.ErrorIs(t, err, ErrConflict)

	stored, err := env.svc.Get(ctx, env.employee, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "First writer", stored.Title)
}

func TestClientCannotEditOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.createOrder(t, OrderDraft{})

	_, err := env.svc.Update(ctx, env.client, order.ID, OrderPatch{Title: ptr("Client edit")})
	assert.ErrorIs(t, err, ErrUnauthorized)

	err = env.svc.Delete(ctx, env.client, order.ID)
	assert.ErrorIs(t, err, ErrUnauthorized)

	stored, err := env.svc.Get(ctx, env.client, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "Lobby Refresh", stored.Title)
}

func TestUnknownRoleIsDeniedEverything(t *testing.T) {
	env := newTestEnv(t)
	stranger := Identity{UserID: env.node.Generate(), Role: "admin"}

	_, err := env.svc.List(context.Background(), stranger)
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = env.svc.Create(context.Background(), stranger, OrderDraft{Title: "Lobby Refresh", Brief: "Redesign the lobby furniture set"})
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestDeleteOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.createOrder(t, OrderDraft{Products: []ProductInput{{Name: "Lamp", Code: "L-1", Type: models.ProductLamp}}})

	require.NoError(t, env.svc.Delete(ctx, env.employee, order.ID))

	_, err := env.svc.Get(ctx, env.employee, order.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, env.svc.Delete(ctx, env.employee, order.ID), ErrNotFound)
}

func TestUploadedFilesStartPending(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	orderID, productID, _ := env.orderWithProductFile(t)

	order, err := env.svc.UploadOrderFile(ctx, env.employee, orderID, OrderFileInput{Name: "ref.jpg", Size: 100, Type: "image/jpeg", URL: "blob:ref"})
	require.NoError(t, err)
	require.Len(t, order.Files, 1)
	assert.Equal(t, models.FilePending, order.Files[0].Status)
	assert.Empty(t, order.Files[0].Comments)

	p := order.Products[order.FindProduct(productID)]
	require.Len(t, p.Files, 1)
	assert.Equal(t, models.FilePending, p.Files[0].Status)
}

func TestClientCannotUploadFiles(t *testing.T) {
	env := newTestEnv(t)
	order := env.createOrder(t, OrderDraft{})

	_, err := env.svc.UploadOrderFile(context.Background(), env.client, order.ID, OrderFileInput{Name: "ref.jpg"})
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestApproveThenRejectIsInvalidTransition(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	orderID, productID, fileID := env.orderWithProductFile(t)

	order, err := env.svc.ApproveProductFile(ctx, env.employee, orderID, productID, fileID)
	require.NoError(t, err)
	assert.Equal(t, models.FileApproved, order.Products[0].Files[0].Status)

	_, err = env.svc.RejectProductFile(ctx, env.employee, orderID, productID, fileID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.ErrorIs(t, err, ErrConflict)

	_, err = env.svc.ApproveProductFile(ctx, env.employee, orderID, productID, fileID)
	assert.ErrorIs(t, err, ErrInvalidTransition, "approving twice is not idempotent")

	stored, err := env.svc.Get(ctx, env.employee, orderID)
	require.NoError(t, err)
	assert.Equal(t, models.FileApproved, stored.Products[0].Files[0].Status)
}

func TestRejectOrderFile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.createOrder(t, OrderDraft{Files: []OrderFileInput{{Name: "brief.pdf"}}})
	fileID := order.Files[0].ID

	updated, err := env.svc.RejectOrderFile(ctx, env.employee, order.ID, fileID)
	require.NoError(t, err)
	assert.Equal(t, models.FileRejected, updated.Files[0].Status)

	_, err = env.svc.ApproveOrderFile(ctx, env.employee, order.ID, fileID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = env.svc.ApproveOrderFile(ctx, env.employee, order.ID, env.node.Generate())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClientCannotChangeDecidedFile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	orderID, productID, fileID := env.orderWithProductFile(t)

	_, err := env.svc.ApproveProductFile(ctx, env.employee, orderID, productID, fileID)
	require.NoError(t, err)

	_, err = env.svc.RejectProductFile(ctx, env.client, orderID, productID, fileID)
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = env.svc.DeleteProductFile(ctx, env.client, orderID, productID, fileID)
	assert.ErrorIs(t, err, ErrUnauthorized)

	stored, err := env.svc.Get(ctx, env.client, orderID)
	require.NoError(t, err)
	assert.Equal(t, models.FileApproved, stored.Products[0].Files[0].Status)
}

func TestReplacingFilesCannotReopenDecidedFile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.createOrder(t, OrderDraft{Files: []OrderFileInput{{Name: "brief.pdf"}}})
	approved, err := env.svc.ApproveOrderFile(ctx, env.employee, order.ID, order.Files[0].ID)
	require.NoError(t, err)

	files := []models.OrderFile(approved.Files)
	files[0].Status = models.FilePending
	_, err = env.svc.Update(ctx, env.employee, order.ID, OrderPatch{Files: &files})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	newFile := []models.OrderFile{{Name: "approved-on-arrival.pdf", Status: models.FileApproved}}
	_, err = env.svc.Update(ctx, env.employee, order.ID, OrderPatch{Files: &newFile})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestDeleteProductRemovesOnlyThatProduct(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.createOrder(t, OrderDraft{
		Products: []ProductInput{
			{Name: "Chair", Code: "C-1", Type: models.ProductChair},
			{Name: "Table", Code: "T-1", Type: models.ProductTable},
			{Name: "Lamp", Code: "L-1", Type: models.ProductLamp},
		},
		Files: []OrderFileInput{{Name: "brief.pdf"}},
	})
	for _, p := range order.Products {
		_, err := env.svc.UploadProductFile(ctx, env.employee, order.ID, p.ID, ProductFileInput{Name: p.Code + ".png"})
		require.NoError(t, err)
	}
	before, err := env.svc.Get(ctx, env.employee, order.ID)
	require.NoError(t, err)

	after, err := env.svc.DeleteProduct(ctx, env.employee, order.ID, before.Products[1].ID)
	require.NoError(t, err)

	require.Len(t, after.Products, 2)
	assert.Equal(t, before.Products[0].ID, after.Products[0].ID)
	assert.Equal(t, before.Products[2].ID, after.Products[1].ID)
	assert.Equal(t, before.Products[0].Files, after.Products[0].Files)
	assert.Equal(t, before.Products[2].Files, after.Products[1].Files)
	assert.Equal(t, before.Files, after.Files)

	_, err = env.svc.DeleteProduct(ctx, env.employee, order.ID, before.Products[1].ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClientCannotDeleteProduct(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.createOrder(t, OrderDraft{Products: []ProductInput{{Name: "Chair", Code: "C-1"}}})

	_, err := env.svc.DeleteProduct(ctx, env.client, order.ID, order.Products[0].ID)
	assert.ErrorIs(t, err, ErrUnauthorized)

	stored, err := env.svc.Get(ctx, env.client, order.ID)
	require.NoError(t, err)
	require.Len(t, stored.Products, 1)
	assert.Equal(t, order.Products[0].ID, stored.Products[0].ID)
	assert.Equal(t, int64(1), stored.Version)
}

func TestProductLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.createOrder(t, OrderDraft{})

	withProduct, err := env.svc.AddProduct(ctx, env.employee, order.ID, ProductInput{Name: "Sofa", Code: "S-1", Type: models.ProductSofa})
	require.NoError(t, err)
	productID := withProduct.Products[0].ID
	assert.Equal(t, models.ProductPending, withProduct.Products[0].Status)

	_, err = env.svc.AddProduct(ctx, env.client, order.ID, ProductInput{Name: "Sofa", Code: "S-2"})
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = env.svc.AddProduct(ctx, env.employee, order.ID, ProductInput{Name: "No code"})
	assert.ErrorIs(t, err, ErrValidation)

	env.clock.Advance(time.Minute)
	reviewed, err := env.svc.ChangeProductStatus(ctx, env.employee, order.ID, productID, models.ProductReview)
	require.NoError(t, err)
	assert.Equal(t, models.ProductReview, reviewed.Products[0].Status)
	assert.True(t, reviewed.Products[0].UpdatedAt.After(reviewed.Products[0].CreatedAt))

	back, err := env.svc.ChangeProductStatus(ctx, env.employee, order.ID, productID, models.ProductPending)
	require.NoError(t, err)
	assert.Equal(t, models.ProductPending, back.Products[0].Status)

	_, err = env.svc.ChangeProductStatus(ctx, env.employee, order.ID, productID, "shipped")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = env.svc.ChangeProductStatus(ctx, env.client, order.ID, productID, models.ProductCompleted)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestReplaceProductsArray(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.createOrder(t, OrderDraft{Products: []ProductInput{
		{Name: "Chair", Code: "C-1"},
		{Name: "Table", Code: "T-1"},
	}})

	replacement := []models.Product{
		{ID: order.Products[1].ID, Name: "Table", Code: "T-1", Status: models.ProductInProgress},
		{Name: "Lamp", Code: "L-1", Type: models.ProductLamp},
	}
	updated, err := env.svc.Update(ctx, env.employee, order.ID, OrderPatch{Products: &replacement})
	require.NoError(t, err)

	require.Len(t, updated.Products, 2)
	assert.Equal(t, order.Products[1].ID, updated.Products[0].ID)
	assert.Equal(t, models.ProductInProgress, updated.Products[0].Status)
	assert.NotZero(t, updated.Products[1].ID)
	assert.Equal(t, models.ProductPending, updated.Products[1].Status)

	foreign := []models.Product{{ID: env.node.Generate(), Name: "Ghost", Code: "G-1"}}
	_, err = env.svc.Update(ctx, env.employee, order.ID, OrderPatch{Products: &foreign})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestReplacingProductWithoutFilesKeepsThem(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	orderID, productID, fileID := env.orderWithProductFile(t)

	_, err := env.svc.ApproveProductFile(ctx, env.employee, orderID, productID, fileID)
	require.NoError(t, err)
	_, err = env.svc.CommentOnProductFile(ctx, env.client, orderID, productID, fileID, "Looks right")
	require.NoError(t, err)

	renamed := []models.Product{{ID: productID, Name: "Lounge chair v2", Code: "LC-01"}}
	updated, err := env.svc.Update(ctx, env.employee, orderID, OrderPatch{Products: &renamed})
	require.NoError(t, err)

	product := updated.Products[0]
	assert.Equal(t, "Lounge chair v2", product.Name)
	assert.Equal(t, models.ProductChair, product.Type)
	assert.Equal(t, models.ProductPending, product.Status)
	require.Len(t, product.Files, 1)
	assert.Equal(t, fileID, product.Files[0].ID)
	assert.Equal(t, models.FileApproved, product.Files[0].Status)
	assert.Len(t, product.Files[0].Comments, 1)

	cleared := []models.Product{{ID: productID, Name: "Lounge chair v2", Code: "LC-01", Files: []models.ProductFile{}}}
	updated, err = env.svc.Update(ctx, env.employee, orderID, OrderPatch{Products: &cleared})
	require.NoError(t, err)
	assert.Empty(t, updated.Products[0].Files)
}

func TestCommentsCarryAuthenticatedAuthor(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	orderID, productID, fileID := env.orderWithProductFile(t)

	order, err := env.svc.CommentOnProductFile(ctx, env.client, orderID, productID, fileID, "  Could the legs be oak?  ")
	require.NoError(t, err)
	order, err = env.svc.CommentOnProductFile(ctx, env.employee, orderID, productID, fileID, "Yes, updating the render.")
	require.NoError(t, err)

	comments := order.Products[0].Files[0].Comments
	require.Len(t, comments, 2)
	assert.Equal(t, "Could the legs be oak?", comments[0].Text)
	assert.Equal(t, env.client.UserID, comments[0].AuthorID)
	assert.Equal(t, "Clara Client", comments[0].Author)
	assert.Equal(t, env.employee.UserID, comments[1].AuthorID)
	assert.NotEqual(t, comments[0].ID, comments[1].ID)

	_, err = env.svc.CommentOnProductFile(ctx, env.client, orderID, productID, fileID, "   ")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCommentOnOrderFile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.createOrder(t, OrderDraft{Files: []OrderFileInput{{Name: "brief.pdf"}}})

	updated, err := env.svc.CommentOnOrderFile(ctx, env.client, order.ID, order.Files[0].ID, "See page 2")
	require.NoError(t, err)
	require.Len(t, updated.Files[0].Comments, 1)
	assert.Equal(t, env.client.UserID, updated.Files[0].Comments[0].AuthorID)

	_, err = env.svc.CommentOnOrderFile(ctx, env.client, order.ID, env.node.Generate(), "Lost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteFiles(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	orderID, productID, fileID := env.orderWithProductFile(t)
	order, err := env.svc.UploadOrderFile(ctx, env.employee, orderID, OrderFileInput{Name: "ref.jpg"})
	require.NoError(t, err)

	order, err = env.svc.DeleteProductFile(ctx, env.employee, orderID, productID, fileID)
	require.NoError(t, err)
	assert.Empty(t, order.Products[0].Files)
	assert.Len(t, order.Files, 1)

	order, err = env.svc.DeleteOrderFile(ctx, env.employee, orderID, order.Files[0].ID)
	require.NoError(t, err)
	assert.Empty(t, order.Files)

	_, err = env.svc.DeleteOrderFile(ctx, env.employee, orderID, fileID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStatsCountByStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a := env.createOrder(t, OrderDraft{})
	env.createOrder(t, OrderDraft{})
	c := env.createOrder(t, OrderDraft{})
	_, err := env.svc.Update(ctx, env.employee, a.ID, OrderPatch{Status: ptr(models.OrderInProgress)})
	require.NoError(t, err)
	_, err = env.svc.Update(ctx, env.employee, c.ID, OrderPatch{Status: ptr(models.OrderCompleted)})
	require.NoError(t, err)

	stats, err := env.svc.Stats(ctx, env.client)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Total)
	assert.Equal(t, int64(1), stats.ByStatus[models.OrderDraft])
	assert.Equal(t, int64(1), stats.ByStatus[models.OrderInProgress])
	assert.Equal(t, int64(1), stats.ByStatus[models.OrderCompleted])
	assert.Equal(t, int64(0), stats.ByStatus[models.OrderReview])
}

func TestLockHeldByAnotherWriterConflicts(t *testing.T) {
	_, rdb := setupTestRedis(t)
	env := newTestEnv(t, withLocker(rdb, 50*time.Millisecond))
	ctx := context.Background()
	order := env.createOrder(t, OrderDraft{})

	token, ok, err := rdb.TryLock(ctx, "order:"+order.ID.String(), time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = env.svc.Update(ctx, env.employee, order.ID, OrderPatch{Title: ptr("Blocked")})
	assert.ErrorIs(t, err, ErrConflict)

	require.NoError(t, rdb.Unlock(ctx, "order:"+order.ID.String(), token))
	_, err = env.svc.Update(ctx, env.employee, order.ID, OrderPatch{Title: ptr("Unblocked")})
	assert.NoError(t, err)
}

func TestConcurrentWritersDoNotLoseUpdates(t *testing.T) {
	_, rdb := setupTestRedis(t)
	env := newTestEnv(t, withLocker(rdb, 5*time.Second))
	ctx := context.Background()
	order := env.createOrder(t, OrderDraft{Files: []OrderFileInput{{Name: "brief.pdf"}}})
	fileID := order.Files[0].ID

	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.svc.CommentOnOrderFile(ctx, env.client, order.ID, fileID, "ping")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	stored, err := env.svc.Get(ctx, env.client, order.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Files[0].Comments, writers)
	assert.Equal(t, int64(1+writers), stored.Version)
}
