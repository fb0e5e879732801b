package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Bright-River-CGI/lifestyle-app/internal/access"
	"github.com/Bright-River-CGI/lifestyle-app/internal/clock"
	"github.com/Bright-River-CGI/lifestyle-app/internal/lifecycle"
	"github.com/Bright-River-CGI/lifestyle-app/internal/metrics"
	"github.com/Bright-River-CGI/lifestyle-app/internal/models"
	"github.com/Bright-River-CGI/lifestyle-app/internal/repository"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

const (
	minTitleLength = 3
	minBriefLength = 10
)

// Identity is the authenticated caller of a service operation.
type Identity struct {
	UserID snowflake.ID
	Name   string
	Email  string
	Role   models.UserRole
}

func (i Identity) displayName() string {
	if name := strings.TrimSpace(i.Name); name != "" {
		return name
	}
	return i.Email
}

// IDGenerator issues unique ids. *snowflake.Node satisfies it.
type IDGenerator interface {
	Generate() snowflake.ID
}

// Locker serializes writers of one order. *redis.Client satisfies it.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	Unlock(ctx context.Context, key, token string) error
}

type OrderDraft struct {
	Title    string
	Brief    string
	Products []ProductInput
	Files    []OrderFileInput
	PropIDs  []snowflake.ID
}

type ProductInput struct {
	Name        string
	Code        string
	Type        models.ProductType
	Description string
	Thumbnail   string
}

type OrderFileInput struct {
	Name string
	Size int64
	Type string
	URL  string
}

type ProductFileInput struct {
	Name string
	Type models.ProductFileType
	URL  string
}

// OrderPatch is a shallow update: nil fields are left alone. Products and
// Files replace the whole array; entries are matched to stored ones by id and
// entries without an id are new.
type OrderPatch struct {
	Title           *string
	Brief           *string
	Status          *models.OrderStatus
	Products        *[]models.Product
	Files           *[]models.OrderFile
	ExpectedVersion *int64
}

type OrderStats struct {
	Total    int64                        `json:"total"`
	ByStatus map[models.OrderStatus]int64 `json:"byStatus"`
}

type OrderService interface {
	Create(ctx context.Context, who Identity, draft OrderDraft) (*models.Order, error)
	List(ctx context.Context, who Identity) ([]models.Order, error)
	Get(ctx context.Context, who Identity, id snowflake.ID) (*models.Order, error)
	Update(ctx context.Context, who Identity, id snowflake.ID, patch OrderPatch) (*models.Order, error)
	Delete(ctx context.Context, who Identity, id snowflake.ID) error
	Stats(ctx context.Context, who Identity) (*OrderStats, error)

	AddProduct(ctx context.Context, who Identity, orderID snowflake.ID, in ProductInput) (*models.Order, error)
	ChangeProductStatus(ctx context.Context, who Identity, orderID, productID snowflake.ID, status models.ProductStatus) (*models.Order, error)
	DeleteProduct(ctx context.Context, who Identity, orderID, productID snowflake.ID) (*models.Order, error)

	UploadOrderFile(ctx context.Context, who Identity, orderID snowflake.ID, in OrderFileInput) (*models.Order, error)
	UploadProductFile(ctx context.Context, who Identity, orderID, productID snowflake.ID, in ProductFileInput) (*models.Order, error)
	DeleteOrderFile(ctx context.Context, who Identity, orderID, fileID snowflake.ID) (*models.Order, error)
	DeleteProductFile(ctx context.Context, who Identity, orderID, productID, fileID snowflake.ID) (*models.Order, error)
	ApproveOrderFile(ctx context.Context, who Identity, orderID, fileID snowflake.ID) (*models.Order, error)
	RejectOrderFile(ctx context.Context, who Identity, orderID, fileID snowflake.ID) (*models.Order, error)
	ApproveProductFile(ctx context.Context, who Identity, orderID, productID, fileID snowflake.ID) (*models.Order, error)
	RejectProductFile(ctx context.Context, who Identity, orderID, productID, fileID snowflake.ID) (*models.Order, error)
	CommentOnOrderFile(ctx context.Context, who Identity, orderID, fileID snowflake.ID, text string) (*models.Order, error)
	CommentOnProductFile(ctx context.Context, who Identity, orderID, productID, fileID snowflake.ID, text string) (*models.Order, error)
}

type OrderServiceParams struct {
	Orders  repository.OrderRepository
	Props   repository.PropRepository
	Policy  *access.Policy
	IDs     IDGenerator
	Clock   clock.Clock
	Locker  Locker
	Metrics *metrics.OrderMetrics
	Logger  *zap.Logger

	LockTTL  time.Duration
	LockWait time.Duration
}

type orderService struct {
	orders   repository.OrderRepository
	props    repository.PropRepository
	policy   *access.Policy
	ids      IDGenerator
	clock    clock.Clock
	locker   Locker
	metrics  *metrics.OrderMetrics
	log      *zap.Logger
	lockTTL  time.Duration
	lockWait time.Duration
}

func NewOrderService(p OrderServiceParams) OrderService {
	log := p.Logger
	if log == nil {
		log = zap.NewNop()
	}
	clk := p.Clock
	if clk == nil {
		clk = clock.New()
	}
	lockTTL := p.LockTTL
	if lockTTL <= 0 {
		lockTTL = 5 * time.Second
	}
	lockWait := p.LockWait
	if lockWait <= 0 {
		lockWait = 2 * time.Second
	}
	return &orderService{
		orders:   p.Orders,
		props:    p.Props,
		policy:   p.Policy,
		ids:      p.IDs,
		clock:    clk,
		locker:   p.Locker,
		metrics:  p.Metrics,
		log:      log.Named("orders"),
		lockTTL:  lockTTL,
		lockWait: lockWait,
	}
}

func (s *orderService) Create(ctx context.Context, who Identity, draft OrderDraft) (order *models.Order, err error) {
	defer func() { err = s.observe("create", err) }()

	if err := s.authorize(who, access.CreateOrder); err != nil {
		return nil, err
	}

	verr := &ValidationError{}
	title := validateTitle(verr, draft.Title)
	brief := validateBrief(verr, draft.Brief)
	now := s.now()

	products := make(datatypes.JSONSlice[models.Product], 0, len(draft.Products))
	for i, in := range draft.Products {
		p, ok := s.newProduct(verr, fmt.Sprintf("products[%d]", i), in, now)
		if ok {
			products = append(products, p)
		}
	}
	files := make(datatypes.JSONSlice[models.OrderFile], 0, len(draft.Files))
	for i, in := range draft.Files {
		f, ok := s.newOrderFile(verr, fmt.Sprintf("files[%d]", i), in, now)
		if ok {
			files = append(files, f)
		}
	}
	if err := verr.orNil(); err != nil {
		return nil, err
	}

	props, err := s.selectProps(ctx, draft.PropIDs)
	if err != nil {
		return nil, err
	}

	order = &models.Order{
		ID:            s.ids.Generate(),
		Title:         title,
		Brief:         brief,
		Status:        models.OrderDraft,
		Products:      products,
		Files:         files,
		SelectedProps: props,
		CreatedBy:     who.UserID,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.orders.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	s.log.Info("order created",
		zap.String("order_id", order.ID.String()),
		zap.String("created_by", who.UserID.String()),
		zap.Int("products", len(order.Products)),
		zap.Int("files", len(order.Files)),
	)
	return order, nil
}

func (s *orderService) List(ctx context.Context, who Identity) (orders []models.Order, err error) {
	defer func() { err = s.observe("list", err) }()

	if err := s.authorize(who, access.ViewOrder); err != nil {
		return nil, err
	}
	orders, err = s.orders.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	if orders == nil {
		orders = []models.Order{}
	}
	return orders, nil
}

func (s *orderService) Get(ctx context.Context, who Identity, id snowflake.ID) (order *models.Order, err error) {
	defer func() { err = s.observe("get", err) }()

	if err := s.authorize(who, access.ViewOrder); err != nil {
		return nil, err
	}
	return s.load(ctx, id)
}

func (s *orderService) Update(ctx context.Context, who Identity, id snowflake.ID, patch OrderPatch) (order *models.Order, err error) {
	defer func() { err = s.observe("update", err) }()

	if err := s.authorize(who, access.EditOrder); err != nil {
		return nil, err
	}
	if patch.Status != nil {
		if err := s.authorize(who, access.ChangeOrderStatus); err != nil {
			return nil, err
		}
	}

	return s.mutate(ctx, id, func(o *models.Order, now time.Time) error {
		if patch.ExpectedVersion != nil && *patch.ExpectedVersion != o.Version {
			return fmt.Errorf("%w: expected version %d, have %d", ErrConflict, *patch.ExpectedVersion, o.Version)
		}

		plan := newPatchPlan()
		if patch.Title != nil {
			o.Title = validateTitle(plan.verr, *patch.Title)
		}
		if patch.Brief != nil {
			o.Brief = validateBrief(plan.verr, *patch.Brief)
		}
		if patch.Status != nil {
			if err := lifecycle.OrderTransition(o.Status, *patch.Status); err != nil {
				plan.verr.add("status", "invalid_status", err.Error())
			} else {
				o.Status = *patch.Status
			}
		}
		if patch.Products != nil {
			o.Products = s.reconcileProducts(plan, o.Products, *patch.Products, now)
		}
		if patch.Files != nil {
			o.Files = s.reconcileOrderFiles(plan, o.Files, *patch.Files, now)
		}
		return plan.finish(s, who)
	})
}

func (s *orderService) Delete(ctx context.Context, who Identity, id snowflake.ID) (err error) {
	defer func() { err = s.observe("delete", err) }()

	if err := s.authorize(who, access.DeleteOrder); err != nil {
		return err
	}

	release, err := s.lock(ctx, id)
	if err != nil {
		return err
	}
	defer release()

	deleted, err := s.orders.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	if !deleted {
		return fmt.Errorf("%w: order %s", ErrNotFound, id)
	}
	s.log.Info("order deleted", zap.String("order_id", id.String()), zap.String("deleted_by", who.UserID.String()))
	return nil
}

func (s *orderService) Stats(ctx context.Context, who Identity) (stats *OrderStats, err error) {
	defer func() { err = s.observe("stats", err) }()

	if err := s.authorize(who, access.ViewOrder); err != nil {
		return nil, err
	}
	counts, err := s.orders.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("count orders: %w", err)
	}

	stats = &OrderStats{ByStatus: make(map[models.OrderStatus]int64, len(counts))}
	for _, status := range lifecycle.OrderStatuses() {
		stats.ByStatus[status] = 0
	}
	for status, n := range counts {
		stats.ByStatus[status] = n
		stats.Total += n
	}
	return stats, nil
}

func (s *orderService) AddProduct(ctx context.Context, who Identity, orderID snowflake.ID, in ProductInput) (order *models.Order, err error) {
	defer func() { err = s.observe("add_product", err) }()

	if err := s.authorize(who, access.AddProduct); err != nil {
		return nil, err
	}
	return s.mutate(ctx, orderID, func(o *models.Order, now time.Time) error {
		verr := &ValidationError{}
		p, ok := s.newProduct(verr, "product", in, now)
		if !ok {
			return verr
		}
		o.Products = append(o.Products, p)
		return nil
	})
}

func (s *orderService) ChangeProductStatus(ctx context.Context, who Identity, orderID, productID snowflake.ID, status models.ProductStatus) (order *models.Order, err error) {
	defer func() { err = s.observe("change_product_status", err) }()

	if err := s.authorize(who, access.ChangeProductStatus); err != nil {
		return nil, err
	}
	return s.mutate(ctx, orderID, func(o *models.Order, now time.Time) error {
		p, err := productOf(o, productID)
		if err != nil {
			return err
		}
		if err := lifecycle.ProductTransition(p.Status, status); err != nil {
			return err
		}
		p.Status = status
		p.UpdatedAt = now
		return nil
	})
}

func (s *orderService) DeleteProduct(ctx context.Context, who Identity, orderID, productID snowflake.ID) (order *models.Order, err error) {
	defer func() { err = s.observe("delete_product", err) }()

	if err := s.authorize(who, access.DeleteProduct); err != nil {
		return nil, err
	}
	return s.mutate(ctx, orderID, func(o *models.Order, now time.Time) error {
		i := o.FindProduct(productID)
		if i < 0 {
			return fmt.Errorf("%w: product %s", ErrNotFound, productID)
		}
		o.Products = append(o.Products[:i], o.Products[i+1:]...)
		return nil
	})
}

func (s *orderService) UploadOrderFile(ctx context.Context, who Identity, orderID snowflake.ID, in OrderFileInput) (order *models.Order, err error) {
	defer func() { err = s.observe("upload_order_file", err) }()

	if err := s.authorize(who, access.UploadFile); err != nil {
		return nil, err
	}
	return s.mutate(ctx, orderID, func(o *models.Order, now time.Time) error {
		verr := &ValidationError{}
		f, ok := s.newOrderFile(verr, "file", in, now)
		if !ok {
			return verr
		}
		o.Files = append(o.Files, f)
		return nil
	})
}

func (s *orderService) UploadProductFile(ctx context.Context, who Identity, orderID, productID snowflake.ID, in ProductFileInput) (order *models.Order, err error) {
	defer func() { err = s.observe("upload_product_file", err) }()

	if err := s.authorize(who, access.UploadFile); err != nil {
		return nil, err
	}
	return s.mutate(ctx, orderID, func(o *models.Order, now time.Time) error {
		p, err := productOf(o, productID)
		if err != nil {
			return err
		}
		verr := &ValidationError{}
		f, ok := s.newProductFile(verr, "file", in, now)
		if !ok {
			return verr
		}
		p.Files = append(p.Files, f)
		p.UpdatedAt = now
		return nil
	})
}

func (s *orderService) DeleteOrderFile(ctx context.Context, who Identity, orderID, fileID snowflake.ID) (order *models.Order, err error) {
	defer func() { err = s.observe("delete_order_file", err) }()

	if err := s.authorize(who, access.DeleteFile); err != nil {
		return nil, err
	}
	return s.mutate(ctx, orderID, func(o *models.Order, now time.Time) error {
		i := o.FindFile(fileID)
		if i < 0 {
			return fmt.Errorf("%w: file %s", ErrNotFound, fileID)
		}
		o.Files = append(o.Files[:i], o.Files[i+1:]...)
		return nil
	})
}

func (s *orderService) DeleteProductFile(ctx context.Context, who Identity, orderID, productID, fileID snowflake.ID) (order *models.Order, err error) {
	defer func() { err = s.observe("delete_product_file", err) }()

	if err := s.authorize(who, access.DeleteFile); err != nil {
		return nil, err
	}
	return s.mutate(ctx, orderID, func(o *models.Order, now time.Time) error {
		p, err := productOf(o, productID)
		if err != nil {
			return err
		}
		i := p.FindFile(fileID)
		if i < 0 {
			return fmt.Errorf("%w: file %s", ErrNotFound, fileID)
		}
		p.Files = append(p.Files[:i], p.Files[i+1:]...)
		p.UpdatedAt = now
		return nil
	})
}

func (s *orderService) ApproveOrderFile(ctx context.Context, who Identity, orderID, fileID snowflake.ID) (*models.Order, error) {
	return s.decideOrderFile(ctx, who, orderID, fileID, models.FileApproved)
}

func (s *orderService) RejectOrderFile(ctx context.Context, who Identity, orderID, fileID snowflake.ID) (*models.Order, error) {
	return s.decideOrderFile(ctx, who, orderID, fileID, models.FileRejected)
}

func (s *orderService) ApproveProductFile(ctx context.Context, who Identity, orderID, productID, fileID snowflake.ID) (*models.Order, error) {
	return s.decideProductFile(ctx, who, orderID, productID, fileID, models.FileApproved)
}

func (s *orderService) RejectProductFile(ctx context.Context, who Identity, orderID, productID, fileID snowflake.ID) (*models.Order, error) {
	return s.decideProductFile(ctx, who, orderID, productID, fileID, models.FileRejected)
}

func (s *orderService) decideOrderFile(ctx context.Context, who Identity, orderID, fileID snowflake.ID, to models.FileStatus) (order *models.Order, err error) {
	defer func() { err = s.observe(decisionOp("order_file", to), err) }()

	if err := s.authorize(who, decisionCapability(to)); err != nil {
		return nil, err
	}
	return s.mutate(ctx, orderID, func(o *models.Order, now time.Time) error {
		i := o.FindFile(fileID)
		if i < 0 {
			return fmt.Errorf("%w: file %s", ErrNotFound, fileID)
		}
		if err := lifecycle.FileTransition(o.Files[i].Status, to); err != nil {
			return err
		}
		o.Files[i].Status = to
		return nil
	})
}

func (s *orderService) decideProductFile(ctx context.Context, who Identity, orderID, productID, fileID snowflake.ID, to models.FileStatus) (order *models.Order, err error) {
	defer func() { err = s.observe(decisionOp("product_file", to), err) }()

	if err := s.authorize(who, decisionCapability(to)); err != nil {
		return nil, err
	}
	return s.mutate(ctx, orderID, func(o *models.Order, now time.Time) error {
		p, err := productOf(o, productID)
		if err != nil {
			return err
		}
		i := p.FindFile(fileID)
		if i < 0 {
			return fmt.Errorf("%w: file %s", ErrNotFound, fileID)
		}
		if err := lifecycle.FileTransition(p.Files[i].Status, to); err != nil {
			return err
		}
		p.Files[i].Status = to
		p.UpdatedAt = now
		return nil
	})
}

func (s *orderService) CommentOnOrderFile(ctx context.Context, who Identity, orderID, fileID snowflake.ID, text string) (order *models.Order, err error) {
	defer func() { err = s.observe("comment_order_file", err) }()

	if err := s.authorize(who, access.AddComment); err != nil {
		return nil, err
	}
	return s.mutate(ctx, orderID, func(o *models.Order, now time.Time) error {
		i := o.FindFile(fileID)
		if i < 0 {
			return fmt.Errorf("%w: file %s", ErrNotFound, fileID)
		}
		c, err := s.newComment(who, text, now)
		if err != nil {
			return err
		}
		o.Files[i].Comments = append(o.Files[i].Comments, c)
		return nil
	})
}

func (s *orderService) CommentOnProductFile(ctx context.Context, who Identity, orderID, productID, fileID snowflake.ID, text string) (order *models.Order, err error) {
	defer func() { err = s.observe("comment_product_file", err) }()

	if err := s.authorize(who, access.AddComment); err != nil {
		return nil, err
	}
	return s.mutate(ctx, orderID, func(o *models.Order, now time.Time) error {
		p, err := productOf(o, productID)
		if err != nil {
			return err
		}
		i := p.FindFile(fileID)
		if i < 0 {
			return fmt.Errorf("%w: file %s", ErrNotFound, fileID)
		}
		c, err := s.newComment(who, text, now)
		if err != nil {
			return err
		}
		p.Files[i].Comments = append(p.Files[i].Comments, c)
		p.UpdatedAt = now
		return nil
	})
}

// mutate is the single write path: lock the order, read it, apply fn to a
// copy, then compare-and-swap on version.
func (s *orderService) mutate(ctx context.Context, id snowflake.ID, fn func(o *models.Order, now time.Time) error) (*models.Order, error) {
	release, err := s.lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	next := current.Clone()
	now := s.nextUpdatedAt(current.UpdatedAt)
	if err := fn(next, now); err != nil {
		return nil, translate(err)
	}
	next.Version = current.Version + 1
	next.UpdatedAt = now
	next.Normalize()

	if err := s.orders.Update(ctx, next, current.Version); err != nil {
		if errors.Is(err, repository.ErrStaleVersion) {
			return nil, translate(err)
		}
		return nil, fmt.Errorf("update order: %w", err)
	}
	return next, nil
}

func (s *orderService) load(ctx context.Context, id snowflake.ID) (*models.Order, error) {
	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		if translated := translate(err); errors.Is(translated, ErrNotFound) {
			return nil, fmt.Errorf("%w: order %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return order, nil
}

// lock takes the per-order write lock, retrying until lockWait elapses.
// Without a locker the version check alone guards writes.
func (s *orderService) lock(ctx context.Context, id snowflake.ID) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}

	key := "order:" + id.String()
	start := time.Now()
	deadline := start.Add(s.lockWait)
	backoff := 10 * time.Millisecond
	for {
		token, ok, err := s.locker.TryLock(ctx, key, s.lockTTL)
		if err != nil {
			return nil, fmt.Errorf("acquire order lock: %w", err)
		}
		if ok {
			s.metrics.LockWait(time.Since(start))
			return func() {
				unlockCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
				defer cancel()
				if err := s.locker.Unlock(unlockCtx, key, token); err != nil {
					s.log.Warn("release order lock", zap.String("order_id", id.String()), zap.Error(err))
				}
			}, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			s.metrics.LockWait(time.Since(start))
			return nil, fmt.Errorf("%w: order %s is being modified", ErrConflict, id)
		}
		wait := backoff
		if wait > remaining {
			wait = remaining
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		if backoff < 100*time.Millisecond {
			backoff *= 2
		}
	}
}

func (s *orderService) authorize(who Identity, c access.Capability) error {
	return translate(s.policy.Authorize(who.Role, c))
}

func (s *orderService) now() time.Time {
	return s.clock.Now().UTC().Truncate(time.Microsecond)
}

// nextUpdatedAt returns a timestamp strictly after prev, so every write moves
// updatedAt forward even when the clock has not.
func (s *orderService) nextUpdatedAt(prev time.Time) time.Time {
	now := s.now()
	if !now.After(prev) {
		now = prev.UTC().Truncate(time.Microsecond).Add(time.Microsecond)
	}
	return now
}

func (s *orderService) observe(op string, err error) error {
	s.metrics.Operation(op, outcomeOf(err))
	if err != nil && outcomeOf(err) == metrics.OutcomeError {
		s.log.Error("order operation failed", zap.String("op", op), zap.Error(err))
	}
	return err
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, ErrNotFound):
		return metrics.OutcomeNotFound
	case errors.Is(err, ErrValidation):
		return metrics.OutcomeValidation
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrUnauthenticated):
		return metrics.OutcomeUnauthorized
	case errors.Is(err, ErrConflict):
		return metrics.OutcomeConflict
	default:
		return metrics.OutcomeError
	}
}

func (s *orderService) selectProps(ctx context.Context, ids []snowflake.ID) (datatypes.JSONSlice[models.Prop], error) {
	selected := datatypes.JSONSlice[models.Prop]{}
	if len(ids) == 0 {
		return selected, nil
	}
	if s.props == nil {
		return nil, newValidationError("selectedProps", "unknown_prop", "model library is not available")
	}

	found, err := s.props.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load props: %w", err)
	}
	byID := make(map[snowflake.ID]models.Prop, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}

	seen := make(map[snowflake.ID]bool, len(ids))
	verr := &ValidationError{}
	for i, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		p, ok := byID[id]
		if !ok {
			verr.add(fmt.Sprintf("selectedProps[%d]", i), "unknown_prop", "prop "+id.String()+" is not in the library")
			continue
		}
		selected = append(selected, p)
	}
	if err := verr.orNil(); err != nil {
		return nil, err
	}
	return selected, nil
}

func (s *orderService) newProduct(verr *ValidationError, field string, in ProductInput, now time.Time) (models.Product, bool) {
	n := len(verr.Errors)
	name := strings.TrimSpace(in.Name)
	if name == "" {
		verr.add(field+".name", "required", "name is required")
	}
	code := strings.TrimSpace(in.Code)
	if code == "" {
		verr.add(field+".code", "required", "code is required")
	}
	typ := in.Type
	if typ == "" {
		typ = models.ProductOther
	}
	if !lifecycle.ValidProductType(typ) {
		verr.add(field+".type", "invalid_type", "unknown product type "+string(typ))
	}
	if len(verr.Errors) > n {
		return models.Product{}, false
	}

	return models.Product{
		ID:          s.ids.Generate(),
		Name:        name,
		Code:        code,
		Type:        typ,
		Description: strings.TrimSpace(in.Description),
		Thumbnail:   strings.TrimSpace(in.Thumbnail),
		Status:      models.ProductPending,
		Files:       []models.ProductFile{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}, true
}

func (s *orderService) newOrderFile(verr *ValidationError, field string, in OrderFileInput, now time.Time) (models.OrderFile, bool) {
	n := len(verr.Errors)
	name := strings.TrimSpace(in.Name)
	if name == "" {
		verr.add(field+".name", "required", "name is required")
	}
	if in.Size < 0 {
		verr.add(field+".size", "invalid_size", "size must not be negative")
	}
	if len(verr.Errors) > n {
		return models.OrderFile{}, false
	}

	return models.OrderFile{
		ID:         s.ids.Generate(),
		Name:       name,
		Size:       in.Size,
		Type:       strings.TrimSpace(in.Type),
		URL:        strings.TrimSpace(in.URL),
		Status:     models.FilePending,
		Comments:   []models.Comment{},
		UploadedAt: now,
	}, true
}

func (s *orderService) newProductFile(verr *ValidationError, field string, in ProductFileInput, now time.Time) (models.ProductFile, bool) {
	n := len(verr.Errors)
	name := strings.TrimSpace(in.Name)
	if name == "" {
		verr.add(field+".name", "required", "name is required")
	}
	typ := in.Type
	if typ == "" {
		typ = models.ProductFileDraft
	}
	if !lifecycle.ValidProductFileType(typ) {
		verr.add(field+".type", "invalid_type", "unknown file type "+string(typ))
	}
	if len(verr.Errors) > n {
		return models.ProductFile{}, false
	}

	return models.ProductFile{
		ID:        s.ids.Generate(),
		Name:      name,
		Type:      typ,
		URL:       strings.TrimSpace(in.URL),
		Status:    models.FilePending,
		Comments:  []models.Comment{},
		CreatedAt: now,
	}, true
}

func (s *orderService) newComment(who Identity, text string, now time.Time) (models.Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.Comment{}, newValidationError("text", "required", "comment text is required")
	}
	return models.Comment{
		ID:       s.ids.Generate(),
		Text:     text,
		Author:   who.displayName(),
		AuthorID: who.UserID,
		Date:     now,
	}, nil
}

func validateTitle(verr *ValidationError, title string) string {
	title = strings.TrimSpace(title)
	if utf8.RuneCountInString(title) < minTitleLength {
		verr.add("title", "too_short", fmt.Sprintf("title must be at least %d characters", minTitleLength))
	}
	return title
}

func validateBrief(verr *ValidationError, brief string) string {
	brief = strings.TrimSpace(brief)
	if utf8.RuneCountInString(brief) < minBriefLength {
		verr.add("brief", "too_short", fmt.Sprintf("brief must be at least %d characters", minBriefLength))
	}
	return brief
}

func productOf(o *models.Order, productID snowflake.ID) (*models.Product, error) {
	i := o.FindProduct(productID)
	if i < 0 {
		return nil, fmt.Errorf("%w: product %s", ErrNotFound, productID)
	}
	return &o.Products[i], nil
}

func decisionCapability(to models.FileStatus) access.Capability {
	if to == models.FileApproved {
		return access.ApproveFile
	}
	return access.RejectFile
}

func decisionOp(kind string, to models.FileStatus) string {
	if to == models.FileApproved {
		return "approve_" + kind
	}
	return "reject_" + kind
}

// patchPlan collects what a full-array replacement needs: the capabilities it
// exercises, field problems, and the first illegal file transition.
type patchPlan struct {
	need       map[access.Capability]struct{}
	verr       *ValidationError
	transition error
}

func newPatchPlan() *patchPlan {
	return &patchPlan{need: map[access.Capability]struct{}{}, verr: &ValidationError{}}
}

func (p *patchPlan) require(c access.Capability) {
	p.need[c] = struct{}{}
}

// finish reports denial first, then bad input, then illegal transitions.
func (p *patchPlan) finish(s *orderService, who Identity) error {
	caps := make([]string, 0, len(p.need))
	for c := range p.need {
		caps = append(caps, string(c))
	}
	sort.Strings(caps)
	for _, c := range caps {
		if err := s.authorize(who, access.Capability(c)); err != nil {
			return err
		}
	}
	if err := p.verr.orNil(); err != nil {
		return err
	}
	return p.transition
}

func (s *orderService) reconcileProducts(plan *patchPlan, stored []models.Product, next []models.Product, now time.Time) datatypes.JSONSlice[models.Product] {
	byID := make(map[snowflake.ID]models.Product, len(stored))
	for _, p := range stored {
		byID[p.ID] = p
	}

	out := make(datatypes.JSONSlice[models.Product], 0, len(next))
	kept := make(map[snowflake.ID]bool, len(next))
	for i, in := range next {
		field := fmt.Sprintf("products[%d]", i)
		if in.ID == 0 {
			plan.require(access.AddProduct)
			p, ok := s.newProduct(plan.verr, field, ProductInput{
				Name: in.Name, Code: in.Code, Type: in.Type,
				Description: in.Description, Thumbnail: in.Thumbnail,
			}, now)
			if !ok {
				continue
			}
			if in.Status != "" && in.Status != models.ProductPending {
				if !lifecycle.ValidProductStatus(in.Status) {
					plan.verr.add(field+".status", "invalid_status", "unknown product status "+string(in.Status))
					continue
				}
				plan.require(access.ChangeProductStatus)
				p.Status = in.Status
			}
			p.Files = s.reconcileProductFiles(plan, field, nil, in.Files, now)
			out = append(out, p)
			continue
		}

		old, ok := byID[in.ID]
		if !ok {
			plan.verr.add(field+".id", "unknown_id", "product "+in.ID.String()+" does not belong to this order")
			continue
		}
		if kept[in.ID] {
			plan.verr.add(field+".id", "duplicate_id", "product "+in.ID.String()+" appears twice")
			continue
		}
		kept[in.ID] = true

		p := old
		p.Name = strings.TrimSpace(in.Name)
		p.Code = strings.TrimSpace(in.Code)
		p.Description = strings.TrimSpace(in.Description)
		p.Thumbnail = strings.TrimSpace(in.Thumbnail)
		if p.Name == "" {
			plan.verr.add(field+".name", "required", "name is required")
		}
		if p.Code == "" {
			plan.verr.add(field+".code", "required", "code is required")
		}
		if in.Type != "" {
			if !lifecycle.ValidProductType(in.Type) {
				plan.verr.add(field+".type", "invalid_type", "unknown product type "+string(in.Type))
			}
			p.Type = in.Type
		}
		if in.Status != "" && in.Status != old.Status {
			if err := lifecycle.ProductTransition(old.Status, in.Status); err != nil {
				plan.verr.add(field+".status", "invalid_status", err.Error())
			}
			plan.require(access.ChangeProductStatus)
			p.Status = in.Status
		}
		// A product without a files key keeps its files; an explicit empty
		// list removes them.
		if in.Files != nil {
			p.Files = s.reconcileProductFiles(plan, field, old.Files, in.Files, now)
		}
		if !sameProduct(old, p) {
			p.UpdatedAt = now
		}
		out = append(out, p)
	}

	for _, p := range stored {
		if !kept[p.ID] {
			plan.require(access.DeleteProduct)
		}
	}
	return out
}

func (s *orderService) reconcileOrderFiles(plan *patchPlan, stored []models.OrderFile, next []models.OrderFile, now time.Time) datatypes.JSONSlice[models.OrderFile] {
	byID := make(map[snowflake.ID]models.OrderFile, len(stored))
	for _, f := range stored {
		byID[f.ID] = f
	}

	out := make(datatypes.JSONSlice[models.OrderFile], 0, len(next))
	kept := make(map[snowflake.ID]bool, len(next))
	for i, in := range next {
		field := fmt.Sprintf("files[%d]", i)
		if in.ID == 0 {
			plan.require(access.UploadFile)
			if in.Status != "" && in.Status != models.FilePending {
				plan.verr.add(field+".status", "invalid_status", "new files start pending")
				continue
			}
			f, ok := s.newOrderFile(plan.verr, field, OrderFileInput{Name: in.Name, Size: in.Size, Type: in.Type, URL: in.URL}, now)
			if ok {
				out = append(out, f)
			}
			continue
		}

		old, ok := byID[in.ID]
		if !ok {
			plan.verr.add(field+".id", "unknown_id", "file "+in.ID.String()+" does not belong to this order")
			continue
		}
		if kept[in.ID] {
			plan.verr.add(field+".id", "duplicate_id", "file "+in.ID.String()+" appears twice")
			continue
		}
		kept[in.ID] = true

		f := old
		if name := strings.TrimSpace(in.Name); name != "" {
			f.Name = name
		}
		f.Status = plan.fileStatus(field, old.Status, in.Status)
		out = append(out, f)
	}

	for _, f := range stored {
		if !kept[f.ID] {
			plan.require(access.DeleteFile)
		}
	}
	return out
}

func (s *orderService) reconcileProductFiles(plan *patchPlan, parent string, stored []models.ProductFile, next []models.ProductFile, now time.Time) []models.ProductFile {
	byID := make(map[snowflake.ID]models.ProductFile, len(stored))
	for _, f := range stored {
		byID[f.ID] = f
	}

	out := make([]models.ProductFile, 0, len(next))
	kept := make(map[snowflake.ID]bool, len(next))
	for i, in := range next {
		field := fmt.Sprintf("%s.files[%d]", parent, i)
		if in.ID == 0 {
			plan.require(access.UploadFile)
			if in.Status != "" && in.Status != models.FilePending {
				plan.verr.add(field+".status", "invalid_status", "new files start pending")
				continue
			}
			f, ok := s.newProductFile(plan.verr, field, ProductFileInput{Name: in.Name, Type: in.Type, URL: in.URL}, now)
			if ok {
				out = append(out, f)
			}
			continue
		}

		old, ok := byID[in.ID]
		if !ok {
			plan.verr.add(field+".id", "unknown_id", "file "+in.ID.String()+" does not belong to this product")
			continue
		}
		if kept[in.ID] {
			plan.verr.add(field+".id", "duplicate_id", "file "+in.ID.String()+" appears twice")
			continue
		}
		kept[in.ID] = true

		f := old
		if name := strings.TrimSpace(in.Name); name != "" {
			f.Name = name
		}
		f.Status = plan.fileStatus(field, old.Status, in.Status)
		out = append(out, f)
	}

	for _, f := range stored {
		if !kept[f.ID] {
			plan.require(access.DeleteFile)
		}
	}
	return out
}

// fileStatus checks a status carried by a replacement file. An empty status
// keeps the stored one. Comments are never taken from a replacement array.
func (p *patchPlan) fileStatus(field string, from, to models.FileStatus) models.FileStatus {
	if to == "" || to == from {
		return from
	}
	p.require(access.ChangeFileStatus)
	if err := lifecycle.FileTransition(from, to); err != nil {
		if errors.Is(err, lifecycle.ErrUnknownStatus) {
			p.verr.add(field+".status", "invalid_status", err.Error())
		} else if p.transition == nil {
			p.transition = err
		}
		return from
	}
	return to
}

func sameProduct(a, b models.Product) bool {
	if a.Name != b.Name || a.Code != b.Code || a.Type != b.Type ||
		a.Description != b.Description || a.Thumbnail != b.Thumbnail ||
		a.Status != b.Status || len(a.Files) != len(b.Files) {
		return false
	}
	for i := range a.Files {
		if a.Files[i].ID != b.Files[i].ID || a.Files[i].Status != b.Files[i].Status || a.Files[i].Name != b.Files[i].Name {
			return false
		}
	}
	return true
}
