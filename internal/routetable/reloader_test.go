package routetable

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeDecl(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("写入声明文件失败: %v", err)
	}
}

func touch(t *testing.T, path string, at time.Time) {
	t.Helper()
	if err := os.Chtimes(path, at, at); err != nil {
		t.Fatalf("修改时间戳失败: %v", err)
	}
}

func TestReloadReplaysFilesInRegistrationOrder(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "main.toml")
	second := filepath.Join(dir, "admin.toml")
	writeDecl(t, first, `
[[Route]]
Path = "/"
Handler = "root"

[[Route]]
Method = "post"
Path = "/items"
Handler = "items.create"
`)
	writeDecl(t, second, `
[[Route]]
Path = "/admin"
Handler = "admin.index"
`)

	table := NewTable()
	reloader := NewReloader(table, nil)
	reloader.RegisterPath(first)
	reloader.RegisterPath(second)

	if err := reloader.Reload(); err != nil {
		t.Fatalf("重建失败: %v", err)
	}

	defs := table.Snapshot()
	if len(defs) != 3 {
		t.Fatalf("路由条数不符: %d", len(defs))
	}
	if defs[0].Handler != "root" || defs[1].Handler != "items.create" || defs[2].Handler != "admin.index" {
		t.Fatalf("重放顺序错误: %+v", defs)
	}
	if defs[1].Method != "POST" {
		t.Fatalf("方法应规范化为大写: %s", defs[1].Method)
	}
	if !table.Finalized() {
		t.Fatalf("成功重建后应定版")
	}
}

func TestReloadFailureReleasesSuppressionFlag(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "routes.toml")
	writeDecl(t, path, `
[[Route]]
Path = "no-slash"
Handler = "h"
`)

	table := NewTable()
	reloader := NewReloader(table, nil)
	reloader.RegisterPath(path)

	if err := reloader.Reload(); err == nil {
		t.Fatalf("非法声明应导致重建失败")
	}
	if table.SuppressionSet() {
		t.Fatalf("失败后抑制标志不得残留")
	}
	if table.Finalized() {
		t.Fatalf("失败后表应处于未定版状态")
	}

	// 修复文件后重试必须成功，标志没有被卡死。
	writeDecl(t, path, `
[[Route]]
Path = "/fixed"
Handler = "h"
`)
	if err := reloader.Reload(); err != nil {
		t.Fatalf("修复后重建仍失败: %v", err)
	}
	if table.SuppressionSet() {
		t.Fatalf("成功重建后抑制标志应为 false")
	}
	if got := table.Snapshot(); len(got) != 1 || got[0].Path != "/fixed" {
		t.Fatalf("重建结果不符: %+v", got)
	}
}

func TestCheckAndReloadOnlyOnMTimeChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "routes.toml")
	writeDecl(t, path, `
[[Route]]
Path = "/"
Handler = "root"
`)

	table := NewTable()
	reloads := 0
	table.MarkDispatcherReady(func([]RouteDef) { reloads++ })

	reloader := NewReloader(table, nil)
	reloader.RegisterPath(path)
	if err := reloader.Reload(); err != nil {
		t.Fatalf("初始加载失败: %v", err)
	}
	if reloads != 1 {
		t.Fatalf("初始加载应定版一次: %d", reloads)
	}

	// 文件未变化：连续两次检查都不应触发重建。
	for i := 0; i < 2; i++ {
		changed, err := reloader.CheckAndReloadIfChanged()
		if err != nil {
			t.Fatalf("检查失败: %v", err)
		}
		if changed {
			t.Fatalf("未修改文件不应触发重建")
		}
	}
	if reloads != 1 {
		t.Fatalf("重载次数应等于时间戳变更次数: %d", reloads)
	}

	// 显式推进时间戳模拟一次修改。
	touch(t, path, time.Now().Add(2*time.Second))
	changed, err := reloader.CheckAndReloadIfChanged()
	if err != nil {
		t.Fatalf("检查失败: %v", err)
	}
	if !changed || reloads != 2 {
		t.Fatalf("时间戳变更应触发一次重建: changed=%v reloads=%d", changed, reloads)
	}

	// 变更已被快照吸收，再查一次不应重复触发。
	if changed, _ := reloader.CheckAndReloadIfChanged(); changed {
		t.Fatalf("同一变更不应重复触发")
	}
}

func TestCheckReportsMissingFile(t *testing.T) {
	table := NewTable()
	reloader := NewReloader(table, nil)
	reloader.RegisterPath(filepath.Join(t.TempDir(), "gone.toml"))

	if _, err := reloader.CheckAndReloadIfChanged(); err == nil {
		t.Fatalf("文件缺失应报错")
	}
}

func TestRegisterPathIgnoresDuplicates(t *testing.T) {
	reloader := NewReloader(NewTable(), nil)
	reloader.RegisterPath("/tmp/a.toml")
	reloader.RegisterPath("/tmp/a.toml")
	if got := reloader.Paths(); len(got) != 1 {
		t.Fatalf("重复注册应被忽略: %v", got)
	}
}
