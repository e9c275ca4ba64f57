package testutils

import "testing"

func TestSourceTestCaseRunsToCompletion(t *testing.T) {
	tc := SourceTestCase{
		Source: `x = 1 + 2`,
		Pass:   PassSuccess(),
	}
	tc.TestFunc("inline")(t)
}

func TestSourceTestCaseCatchesScriptErrors(t *testing.T) {
	tc := SourceTestCase{
		Source: `error("boom")`,
		Pass:   PassFailure(),
	}
	tc.TestFunc("inline")(t)
}

func TestGlobalEqualsAssertsFinalValue(t *testing.T) {
	GlobalEquals(t, `answer = 40 + 2`, "answer", float64(42))
}
