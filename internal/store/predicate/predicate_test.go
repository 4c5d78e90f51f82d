package predicate

import "testing"

func TestCompileEmptyIsMatchAll(t *testing.T) {
	c := Compile(nil)
	if c.Expr != "" || len(c.Args) != 0 {
		t.Errorf("expected empty compiled predicate, got %+v", c)
	}
}

func TestCompileSimpleEquality(t *testing.T) {
	c := Compile(Predicate{"format": "urn:x-nmos:format:video"})
	if c.Expr != "format = ?" {
		t.Errorf("expr = %q", c.Expr)
	}
	if len(c.Args) != 1 || c.Args[0] != "urn:x-nmos:format:video" {
		t.Errorf("args = %v", c.Args)
	}
}

func TestCompileBetween(t *testing.T) {
	c := Compile(Predicate{"created": Op("between", []any{1.0, 2.0})})
	if c.Expr != "created BETWEEN ? AND ?" {
		t.Errorf("expr = %q", c.Expr)
	}
	if len(c.Args) != 2 {
		t.Errorf("args = %v", c.Args)
	}
}

func TestCompileUnknownOperatorSkipped(t *testing.T) {
	c := Compile(Predicate{"frame_width": Op("bogus", 10)})
	if c.Expr != "" {
		t.Errorf("expected unknown operator clause to be skipped, got %q", c.Expr)
	}
}

func TestCompileInvalidBetweenSkipped(t *testing.T) {
	c := Compile(Predicate{"created": Op("between", []any{1.0})})
	if c.Expr != "" {
		t.Errorf("expected invalid between clause to be skipped, got %q", c.Expr)
	}
}

func TestCompileMultipleClausesJoinedWithAnd(t *testing.T) {
	c := Compile(Predicate{
		"format":      "video",
		"frame_width": Op("gte", 1920),
	})
	if c.Expr != "format = ? AND frame_width >= ?" && c.Expr != "frame_width >= ? AND format = ?" {
		t.Errorf("unexpected expr: %q", c.Expr)
	}
}

func TestCompileContains(t *testing.T) {
	c := Compile(Predicate{"tags": Op("contains", "live")})
	if c.Expr != "tags LIKE ?" || c.Args[0] != "%live%" {
		t.Errorf("got expr=%q args=%v", c.Expr, c.Args)
	}
}
