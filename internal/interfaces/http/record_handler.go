package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/handwerkpro/handwerk-api/internal/application/dto"
	"github.com/handwerkpro/handwerk-api/internal/application/sync"
	"github.com/handwerkpro/handwerk-api/internal/domain"
	"github.com/handwerkpro/handwerk-api/internal/domain/entity"
)

var knownCollections = map[string]bool{
	entity.CollectionInvoices:  true,
	entity.CollectionCustomers: true,
	entity.CollectionQuotes:    true,
	entity.CollectionOrders:    true,
	entity.CollectionMahnungen: true,
}

// RecordHandler exposes the synced collections. Reads come from the local
// cache; writes go local-first and sync in the background, so every
// endpoint answers even while offline.
type RecordHandler struct {
	syncer *sync.Engine
	tenant string
}

// NewRecordHandler builds the handler.
func NewRecordHandler(syncer *sync.Engine, tenant string) *RecordHandler {
	return &RecordHandler{syncer: syncer, tenant: tenant}
}

func validCollection(c *fiber.Ctx) (string, error) {
	collection := c.Params("collection")
	if !knownCollections[collection] {
		return "", c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "UNKNOWN_COLLECTION", Message: "unknown collection: " + collection})
	}
	return collection, nil
}

// List godoc
// @Summary      List cached records of a collection
// @Tags         records
// @Produce      json
// @Param        collection  path  string  true  "invoices, customers, quotes, purchase_orders, mahnungen"
// @Success      200  {array}  entity.Record
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/records/{collection} [get]
func (h *RecordHandler) List(c *fiber.Ctx) error {
	collection, err := validCollection(c)
	if collection == "" {
		return err
	}
	records, err := h.syncer.List(collection)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	if records == nil {
		records = []entity.Record{}
	}
	return c.JSON(records)
}

// Get godoc
// @Summary      Read one cached record
// @Tags         records
// @Produce      json
// @Param        collection  path  string  true  "collection name"
// @Param        id          path  string  true  "record id"
// @Success      200  {object}  entity.Record
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/records/{collection}/{id} [get]
func (h *RecordHandler) Get(c *fiber.Ctx) error {
	collection, err := validCollection(c)
	if collection == "" {
		return err
	}
	rec, err := h.syncer.Get(collection, c.Params("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "record not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	return c.JSON(rec)
}

// Put godoc
// @Summary      Create or update a record (local-first)
// @Description  Writes to the local cache immediately and syncs to the
// @Description  backend when reachable, queueing otherwise.
// @Tags         records
// @Accept       json
// @Produce      json
// @Param        collection  path  string                   true  "collection name"
// @Param        id          path  string                   false "record id; omit to create"
// @Param        body        body  dto.UpsertRecordRequest  true  "record fields"
// @Success      200  {object}  entity.Record
// @Failure      400  {object}  dto.ErrorResponse
// @Router       /api/records/{collection}/{id} [put]
func (h *RecordHandler) Put(c *fiber.Ctx) error {
	collection, err := validCollection(c)
	if collection == "" {
		return err
	}
	var in dto.UpsertRecordRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "invalid body"})
	}

	rec := entity.Record{ID: c.Params("id"), Fields: in.Fields}
	if in.CreatedAt != nil {
		rec.CreatedAt = *in.CreatedAt
	}
	stored, err := h.syncer.Upsert(c.UserContext(), h.tenant, collection, rec)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	return c.JSON(stored)
}

// Create handles POST without an id; the engine assigns one.
func (h *RecordHandler) Create(c *fiber.Ctx) error {
	return h.Put(c)
}

// Delete godoc
// @Summary      Delete a record (tombstone)
// @Tags         records
// @Param        collection  path  string  true  "collection name"
// @Param        id          path  string  true  "record id"
// @Success      204
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/records/{collection}/{id} [delete]
func (h *RecordHandler) Delete(c *fiber.Ctx) error {
	collection, err := validCollection(c)
	if collection == "" {
		return err
	}
	if err := h.syncer.Remove(c.UserContext(), h.tenant, collection, c.Params("id")); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "record not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Pull godoc
// @Summary      Merge the remote state of a collection into the cache
// @Description  Last-write-wins merge; falls back to the cached copy when
// @Description  the backend is unreachable.
// @Tags         records
// @Produce      json
// @Param        collection  path  string  true  "collection name"
// @Success      200  {array}  entity.Record
// @Router       /api/records/{collection}/pull [post]
func (h *RecordHandler) Pull(c *fiber.Ctx) error {
	collection, err := validCollection(c)
	if collection == "" {
		return err
	}
	records, err := h.syncer.Pull(c.UserContext(), h.tenant, collection)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	if records == nil {
		records = []entity.Record{}
	}
	return c.JSON(records)
}
