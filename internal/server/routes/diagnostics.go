package routes

import (
	"context"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/resource-hub/internal/cache"
	"github.com/any-hub/resource-hub/internal/cachedb"
	"github.com/any-hub/resource-hub/internal/locator"
	"github.com/any-hub/resource-hub/internal/server"
	"github.com/any-hub/resource-hub/internal/storage"
	"github.com/any-hub/resource-hub/internal/version"
)

// Locator 是诊断接口需要的 Locator 能力子集。
type Locator interface {
	Status() locator.Status
	ResourceLocationBase() string
	ErrorMessages() []locator.ItemError
	CacheStats() cache.Stats
	Storages() []storage.Storage
	SynchronizeDb(ctx context.Context) error
	RemoveResource(ctx context.Context, id int64) error
}

// Catalog 提供缓存数据库的只读查询。
type Catalog interface {
	Storages(ctx context.Context) ([]cachedb.Storage, error)
	Resources(ctx context.Context, filter cachedb.Filter) ([]cachedb.Resource, error)
	ResourceByID(ctx context.Context, id int64) (*cachedb.Resource, error)
	TagsFor(ctx context.Context, resourceID int64) ([]cachedb.Tag, error)
}

type statusPayload struct {
	Status  string              `json:"status"`
	Root    string              `json:"root"`
	Version string              `json:"version"`
	SQLite  string              `json:"sqlite"`
	Errors  []locator.ItemError `json:"errors"`
	Cache   cache.Stats         `json:"cache"`
}

type storagePayload struct {
	Location     string `json:"location"`
	Type         string `json:"type"`
	Valid        bool   `json:"valid"`
	Registered   bool   `json:"registered"`
	Active       bool   `json:"active"`
	PreInstalled bool   `json:"pre_installed"`
}

type resourcePayload struct {
	cachedb.Resource
	Tags []cachedb.Tag `json:"tags"`
}

// RegisterDiagnosticsRoutes 暴露 /-/status、/-/storages、/-/resources 等诊断接口。
func RegisterDiagnosticsRoutes(app *fiber.App, loc Locator, catalog Catalog, logger *logrus.Logger) {
	if app == nil || loc == nil || catalog == nil {
		return
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	app.Get("/-/status", func(c fiber.Ctx) error {
		return c.JSON(statusPayload{
			Status:  loc.Status().String(),
			Root:    loc.ResourceLocationBase(),
			Version: version.Version,
			SQLite:  cachedb.DriverVersion(),
			Errors:  nonNilErrors(loc.ErrorMessages()),
			Cache:   loc.CacheStats(),
		})
	})

	app.Get("/-/storages", func(c fiber.Ctx) error {
		rows, err := catalog.Storages(c.Context())
		if err != nil {
			return renderError(c, logger, fiber.StatusInternalServerError, "storages_query_failed", err)
		}
		return c.JSON(fiber.Map{"storages": mergeStorages(loc.Storages(), rows)})
	})

	app.Get("/-/resources", func(c fiber.Ctx) error {
		filter := cachedb.Filter{
			ResourceType:    strings.ToLower(strings.TrimSpace(c.Query("type"))),
			StorageLocation: strings.TrimSpace(c.Query("storage")),
			IncludeInactive: c.Query("inactive") == "true",
		}
		records, err := catalog.Resources(c.Context(), filter)
		if err != nil {
			return renderError(c, logger, fiber.StatusInternalServerError, "resources_query_failed", err)
		}
		if records == nil {
			records = []cachedb.Resource{}
		}
		return c.JSON(fiber.Map{"resources": records})
	})

	app.Get("/-/resources/:id", func(c fiber.Ctx) error {
		id, ok := parseID(c)
		if !ok {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_resource_id"})
		}
		record, err := catalog.ResourceByID(c.Context(), id)
		if errors.Is(err, cachedb.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "resource_not_found"})
		}
		if err != nil {
			return renderError(c, logger, fiber.StatusInternalServerError, "resource_query_failed", err)
		}
		tags, err := catalog.TagsFor(c.Context(), id)
		if err != nil {
			return renderError(c, logger, fiber.StatusInternalServerError, "tags_query_failed", err)
		}
		if tags == nil {
			tags = []cachedb.Tag{}
		}
		return c.JSON(resourcePayload{Resource: *record, Tags: tags})
	})

	app.Post("/-/synchronize", func(c fiber.Ctx) error {
		err := loc.SynchronizeDb(c.Context())
		payload := fiber.Map{"errors": nonNilErrors(loc.ErrorMessages())}
		if err != nil {
			logger.WithError(err).WithField("request_id", server.RequestID(c)).Warn("synchronize failed")
			payload["error"] = "synchronize_failed"
			return c.Status(fiber.StatusInternalServerError).JSON(payload)
		}
		return c.JSON(payload)
	})

	app.Delete("/-/resources/:id", func(c fiber.Ctx) error {
		id, ok := parseID(c)
		if !ok {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_resource_id"})
		}
		err := loc.RemoveResource(c.Context(), id)
		if errors.Is(err, cachedb.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "resource_not_found"})
		}
		if err != nil {
			return renderError(c, logger, fiber.StatusInternalServerError, "remove_failed", err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}

// mergeStorages 合并 Locator 当前发现的存储与数据库中登记的存储。
func mergeStorages(live []storage.Storage, rows []cachedb.Storage) []storagePayload {
	byLocation := make(map[string]*storagePayload, len(live)+len(rows))
	var order []string
	for _, st := range live {
		byLocation[st.Location()] = &storagePayload{
			Location: st.Location(),
			Type:     st.Type().String(),
			Valid:    st.Valid(),
		}
		order = append(order, st.Location())
	}
	for _, row := range rows {
		item, ok := byLocation[row.Location]
		if !ok {
			item = &storagePayload{Location: row.Location, Type: row.TypeName}
			byLocation[row.Location] = item
			order = append(order, row.Location)
		}
		item.Registered = true
		item.Active = row.Active
		item.PreInstalled = row.PreInstalled
	}

	result := make([]storagePayload, 0, len(order))
	for _, location := range order {
		result = append(result, *byLocation[location])
	}
	return result
}

func parseID(c fiber.Ctx) (int64, bool) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	return id, err == nil && id > 0
}

func nonNilErrors(errs []locator.ItemError) []locator.ItemError {
	if errs == nil {
		return []locator.ItemError{}
	}
	return errs
}

func renderError(c fiber.Ctx, logger *logrus.Logger, status int, code string, err error) error {
	logger.WithError(err).WithFields(logrus.Fields{
		"action":     "diagnostics",
		"path":       c.Path(),
		"request_id": server.RequestID(c),
	}).Error(code)
	return c.Status(status).JSON(fiber.Map{"error": code})
}
