package stub

import "testing"

const sample = `// token program
import math_lib;

program token.tveld {
    record Token {
        owner: address;
        amount: u64;
    }

    function mint(owner: address, amount: u64) -> Token {
        let t: Token = Token { owner: owner, amount: amount };
        return t;
    }

    // function commented_out(x: u8) -> u8 {
    function transfer(t: Token, to: address) -> Token {
        return t;
    }
}
`

func TestExtract(t *testing.T) {
	st := Extract("token.tveld", sample)

	if st.Program != "token.tveld" {
		t.Fatalf("Program = %q", st.Program)
	}
	if len(st.Functions) != 2 {
		t.Fatalf("functions = %+v, want mint and transfer", st.Functions)
	}
	if !st.HasFunction("mint") || !st.HasFunction("transfer") {
		t.Fatalf("missing function in %+v", st.Functions)
	}
	if st.HasFunction("commented_out") {
		t.Fatal("commented-out declarations must not be extracted")
	}
	if st.Functions[0].Signature != "function mint(owner: address, amount: u64) -> Token" {
		t.Fatalf("signature = %q", st.Functions[0].Signature)
	}

	if len(st.Records) != 1 || st.Records[0].Name != "Token" {
		t.Fatalf("records = %+v", st.Records)
	}
	fields := st.Records[0].Fields
	if len(fields) != 2 || fields[0] != "owner" || fields[1] != "amount" {
		t.Fatalf("record fields = %v", fields)
	}
}

func TestExtractMultipleSources(t *testing.T) {
	st := Extract("lib.tveld",
		"program lib.tveld {\n    function one() -> u8 {\n        return 1u8;\n    }\n}\n",
		"program lib.tveld {\n    function two() -> u8 {\n        return 2u8;\n    }\n}\n",
	)
	if !st.HasFunction("one") || !st.HasFunction("two") {
		t.Fatalf("stub = %+v", st)
	}
}
