package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func useBufferWriters(t *testing.T) {
	t.Helper()
	prevOut, prevErr := stdOut, stdErr
	stdOut, stdErr = &bytes.Buffer{}, &bytes.Buffer{}
	t.Cleanup(func() {
		stdOut, stdErr = prevOut, prevErr
	})
}

func configFixture(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("写入配置失败: %v", err)
	}
	return path
}

func TestParseCLIFlagsPriority(t *testing.T) {
	t.Setenv("MODBOOT_CONFIG", "/tmp/env.toml")

	opts, err := parseCLIFlags([]string{})
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if opts.configPath != "/tmp/env.toml" {
		t.Fatalf("应优先使用环境变量，得到 %s", opts.configPath)
	}

	opts, err = parseCLIFlags([]string{"--config", "/tmp/flag.toml"})
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if opts.configPath != "/tmp/flag.toml" {
		t.Fatalf("flag 应高于环境变量，得到 %s", opts.configPath)
	}
}

func TestParseCLIFlagsDefault(t *testing.T) {
	t.Setenv("MODBOOT_CONFIG", "")

	opts, err := parseCLIFlags([]string{})
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if opts.configPath != "config.toml" {
		t.Fatalf("默认路径应为 config.toml，得到 %s", opts.configPath)
	}
}

func TestRunCheckConfigSuccess(t *testing.T) {
	useBufferWriters(t)
	code := run(cliOptions{
		configPath: configFixture(t, "LogLevel = \"error\"\n"),
		checkOnly:  true,
	})
	if code != 0 {
		t.Fatalf("期望退出码 0，得到 %d", code)
	}
}

func TestRunCheckConfigFailure(t *testing.T) {
	useBufferWriters(t)
	// 开启会话但缺少 SecretToken。
	code := run(cliOptions{
		configPath: configFixture(t, "LogLevel = \"error\"\nSessionStore = \"cookie\"\n"),
		checkOnly:  true,
	})
	if code == 0 {
		t.Fatalf("无效配置应返回非零退出码")
	}
}

func TestRunCheckConfigRejectsBadRouteDeclaration(t *testing.T) {
	useBufferWriters(t)
	dir := t.TempDir()
	routes := filepath.Join(dir, "routes.toml")
	// 路径缺少前导斜杠。
	if err := os.WriteFile(routes, []byte("[[Route]]\nMethod = \"GET\"\nPath = \"health\"\nHandler = \"health\"\n"), 0o644); err != nil {
		t.Fatalf("写入路由声明失败: %v", err)
	}
	configPath := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(configPath, []byte("LogLevel = \"error\"\nRoutePaths = [\"routes.toml\"]\n"), 0o644); err != nil {
		t.Fatalf("写入配置失败: %v", err)
	}

	code := run(cliOptions{configPath: configPath, checkOnly: true})
	if code == 0 {
		t.Fatalf("非法路由声明应返回非零退出码")
	}
}

func TestRunMissingConfigFails(t *testing.T) {
	useBufferWriters(t)
	code := run(cliOptions{
		configPath: filepath.Join(t.TempDir(), "missing.toml"),
		checkOnly:  true,
	})
	if code == 0 {
		t.Fatalf("配置文件不存在应返回非零退出码")
	}
}

func TestRunVersionOutput(t *testing.T) {
	useBufferWriters(t)
	code := run(cliOptions{showVersion: true})
	if code != 0 {
		t.Fatalf("version 模式应成功退出，得到 %d", code)
	}
	if !strings.Contains(stdOut.(*bytes.Buffer).String(), "modboot") {
		t.Fatalf("version 输出应包含 modboot 标识")
	}
}
