package dispatch

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/modboot/modboot/internal/routetable"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func resetHandlers(t *testing.T) {
	t.Helper()
	handlersMu.Lock()
	prev := handlers
	handlers = make(map[string]fiber.Handler)
	handlersMu.Unlock()
	t.Cleanup(func() {
		handlersMu.Lock()
		handlers = prev
		handlersMu.Unlock()
	})
}

func TestDispatchByTableSnapshot(t *testing.T) {
	resetHandlers(t)
	MustRegisterHandler("users.show", func(c fiber.Ctx) error {
		id, _ := c.Locals("route_param_id").(string)
		return c.SendString("user " + id)
	})

	table := routetable.NewTable()
	table.Append(routetable.RouteDef{Name: "user", Method: "GET", Path: "/users/:id", Handler: "users.show"})
	table.Finalize()

	app, err := NewApp(AppOptions{
		Logger:     quietLogger(),
		Table:      table,
		ListenPort: 5000,
	})
	if err != nil {
		t.Fatalf("组装失败: %v", err)
	}

	resp, err := app.Test(httptest.NewRequest("GET", "/users/42", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "user 42" {
		t.Fatalf("路由参数未传递: %q", body)
	}
}

func TestDispatchUnmappedRouteReturns404(t *testing.T) {
	resetHandlers(t)
	app, err := NewApp(AppOptions{
		Logger:     quietLogger(),
		Table:      routetable.NewTable(),
		ListenPort: 5000,
	})
	if err != nil {
		t.Fatalf("组装失败: %v", err)
	}

	resp, err := app.Test(httptest.NewRequest("GET", "/nowhere", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("未命中应返回 404: %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "route_unmapped") {
		t.Fatalf("应输出 route_unmapped: %s", body)
	}
}

func TestDispatchMissingHandlerReturns500(t *testing.T) {
	resetHandlers(t)
	table := routetable.NewTable()
	table.Append(routetable.RouteDef{Method: "GET", Path: "/ghost", Handler: "ghost"})

	app, err := NewApp(AppOptions{Logger: quietLogger(), Table: table, ListenPort: 5000})
	if err != nil {
		t.Fatalf("组装失败: %v", err)
	}

	resp, err := app.Test(httptest.NewRequest("GET", "/ghost", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusInternalServerError {
		t.Fatalf("缺失处理器应返回 500: %d", resp.StatusCode)
	}
}

type recordingHook struct {
	entries []*logrus.Entry
}

func (h *recordingHook) Levels() []logrus.Level { return logrus.AllLevels }
func (h *recordingHook) Fire(e *logrus.Entry) error {
	h.entries = append(h.entries, e)
	return nil
}

func TestNewAppResolvesDeferredFinalize(t *testing.T) {
	resetHandlers(t)
	table := routetable.NewTable()
	table.Append(routetable.RouteDef{Method: "GET", Path: "/", Handler: "root"})
	table.Finalize()

	logger := quietLogger()
	hook := &recordingHook{}
	logger.AddHook(hook)

	// NewApp 声明调度就绪后，推迟的定版回调应被补发。
	if _, err := NewApp(AppOptions{Logger: logger, Table: table, ListenPort: 5000}); err != nil {
		t.Fatalf("组装失败: %v", err)
	}

	found := false
	for _, e := range hook.entries {
		if e.Data["action"] == "routes_finalized" {
			found = true
			if e.Data["routes"] != 1 {
				t.Fatalf("定版快照条数不符: %v", e.Data["routes"])
			}
		}
	}
	if !found {
		t.Fatalf("调度就绪后应补发定版")
	}
}

func TestRegisterHandlerValidation(t *testing.T) {
	resetHandlers(t)
	if err := RegisterHandler("", func(c fiber.Ctx) error { return nil }); err == nil {
		t.Fatalf("空键应报错")
	}
	if err := RegisterHandler("h", nil); err == nil {
		t.Fatalf("nil 处理器应报错")
	}
	if err := RegisterHandler("h", func(c fiber.Ctx) error { return nil }); err != nil {
		t.Fatalf("首次注册应成功: %v", err)
	}
	if err := RegisterHandler("H", func(c fiber.Ctx) error { return nil }); err == nil {
		t.Fatalf("重复注册应失败")
	}
}
