package health

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"

	"github.com/modboot/modboot/internal/contributor"
	"github.com/modboot/modboot/internal/dispatch"
)

func TestInitRegistersContributorAndHandler(t *testing.T) {
	if _, ok := contributor.Resolve("health"); !ok {
		t.Fatalf("health 贡献者应随包加载注册")
	}
	if _, ok := dispatch.ResolveHandler("health"); !ok {
		t.Fatalf("health 处理器应随包加载注册")
	}
}

func TestHandlerReportsDiagnostics(t *testing.T) {
	app := fiber.New()
	app.Get("/health", Handler)

	resp, err := app.Test(httptest.NewRequest("GET", "/health", nil))
	if err != nil {
		t.Fatalf("请求失败: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Fatalf("期望 200，得到 %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("读取响应失败: %v", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("响应应为 JSON: %v", err)
	}
	if payload["status"] != "ok" {
		t.Fatalf("诊断状态异常: %v", payload)
	}
	if _, exists := payload["version"]; !exists {
		t.Fatalf("诊断应包含版本: %v", payload)
	}
}
