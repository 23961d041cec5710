package contributor

import "testing"

func replaceRegistry(t *testing.T) func() {
	t.Helper()
	prev := globalRegistry
	globalRegistry = newRegistry()
	return func() { globalRegistry = prev }
}

type stubContributor struct {
	Base
	key   string
	inits []Initializer
}

func (s *stubContributor) Key() string                 { return s.key }
func (s *stubContributor) Initializers() []Initializer { return s.inits }

func TestRegisterResolveAndList(t *testing.T) {
	cleanup := replaceRegistry(t)
	defer cleanup()

	if err := Register(&stubContributor{key: "gamma"}); err != nil {
		t.Fatalf("注册 gamma 失败: %v", err)
	}
	if err := Register(&stubContributor{key: "beta"}); err != nil {
		t.Fatalf("注册 beta 失败: %v", err)
	}

	if _, ok := Resolve("gamma"); !ok {
		t.Fatalf("gamma 应可解析")
	}
	if _, ok := Resolve("GAMMA"); !ok {
		t.Fatalf("解析应忽略大小写")
	}

	// List 必须保持注册顺序，而非字典序。
	keys := Keys()
	if len(keys) != 2 || keys[0] != "gamma" || keys[1] != "beta" {
		t.Fatalf("注册顺序未保持: %v", keys)
	}
}

func TestRegisterDuplicateFails(t *testing.T) {
	cleanup := replaceRegistry(t)
	defer cleanup()

	if err := Register(&stubContributor{key: "core"}); err != nil {
		t.Fatalf("首次注册应成功: %v", err)
	}
	if err := Register(&stubContributor{key: "Core"}); err == nil {
		t.Fatalf("重复注册应失败")
	}
}

func TestRegisterRejectsEmptyKey(t *testing.T) {
	cleanup := replaceRegistry(t)
	defer cleanup()

	if err := Register(&stubContributor{key: "  "}); err == nil {
		t.Fatalf("空键应报错")
	}
	if err := Register(nil); err == nil {
		t.Fatalf("nil 贡献者应报错")
	}
}

func TestPhaseString(t *testing.T) {
	if PhaseBootstrap.String() != "bootstrap" ||
		PhaseContributed.String() != "contributed" ||
		PhaseFinisher.String() != "finisher" {
		t.Fatalf("阶段名输出不符合预期")
	}
	if Phase(99).String() != "unknown" {
		t.Fatalf("未知阶段应输出 unknown")
	}
}
