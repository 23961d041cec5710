package routetable

import (
	"path/filepath"
	"testing"
)

func TestLoadDeclarationFileNormalizes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routes.toml")
	writeDecl(t, path, `
[[Route]]
Path = "/users"
Handler = "users.index"

[[Route]]
Method = "delete"
Path = "/users/:id"
Handler = "users.destroy"
Name = "remove_user"
`)

	defs, err := LoadDeclarationFile(path)
	if err != nil {
		t.Fatalf("加载失败: %v", err)
	}
	if len(defs) != 2 {
		t.Fatalf("条数不符: %d", len(defs))
	}
	if defs[0].Method != "GET" {
		t.Fatalf("缺省方法应为 GET: %s", defs[0].Method)
	}
	if defs[0].Name == "" {
		t.Fatalf("缺省名称应自动生成")
	}
	if defs[1].Method != "DELETE" || defs[1].Name != "remove_user" {
		t.Fatalf("显式字段被破坏: %+v", defs[1])
	}
}

func TestLoadDeclarationFileRejectsBadEntries(t *testing.T) {
	cases := map[string]string{
		"非法方法": "[[Route]]\nMethod = \"FETCH\"\nPath = \"/\"\nHandler = \"h\"\n",
		"相对路径": "[[Route]]\nPath = \"users\"\nHandler = \"h\"\n",
		"缺少处理器": "[[Route]]\nPath = \"/users\"\n",
	}
	for name, content := range cases {
		path := filepath.Join(t.TempDir(), "bad.toml")
		writeDecl(t, path, content)
		if _, err := LoadDeclarationFile(path); err == nil {
			t.Errorf("%s: 应报错", name)
		}
	}
}

func TestLoadDeclarationFileMissing(t *testing.T) {
	if _, err := LoadDeclarationFile(filepath.Join(t.TempDir(), "none.toml")); err == nil {
		t.Fatalf("文件不存在应报错")
	}
}
