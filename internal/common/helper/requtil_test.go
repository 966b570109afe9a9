package helper

import "testing"

func TestIsPublicKeyFormat(t *testing.T) {
	valid := []string{
		"4Nd1mYQqkbDRyXAMSxLPqbEVzRyQmc8G5YLKYSbS9eGP",
		"11111111111111111111111111111111",
	}
	for _, s := range valid {
		if !IsPublicKeyFormat(s) {
			t.Fatalf("should accept %q", s)
		}
	}

	invalid := []string{
		"",
		"short",
		"0Nd1mYQqkbDRyXAMSxLPqbEVzRyQmc8G5YLKYSbS9eGP",  // base58 无 0
		"ONd1mYQqkbDRyXAMSxLPqbEVzRyQmc8G5YLKYSbS9eGP",  // base58 无 O
		"4Nd1mYQqkbDRyXAMSxLPqbEVzRyQmc8G5YLKYSbS9eG!",  // 非法字符
		"4Nd1mYQqkbDRyXAMSxLPqbEVzRyQmc8G5YLKYSbS9eGP4Nd1mYQqkbDRyXAMSxLP", // 超长
	}
	for _, s := range invalid {
		if IsPublicKeyFormat(s) {
			t.Fatalf("should reject %q", s)
		}
	}
}

func TestValidatePlayNormalizesInput(t *testing.T) {
	in := PlayParsed{
		PublicKey:    " 4Nd1mYQqkbDRyXAMSxLPqbEVzRyQmc8G5YLKYSbS9eGP ",
		PlayerChoice: " ROCK ",
	}
	ok, msg := ValidatePlay(&in)
	if !ok {
		t.Fatalf("validate: %s", msg)
	}
	if in.PlayerChoice != "rock" {
		t.Fatalf("choice not normalized: %q", in.PlayerChoice)
	}
	if in.PublicKey != "4Nd1mYQqkbDRyXAMSxLPqbEVzRyQmc8G5YLKYSbS9eGP" {
		t.Fatalf("public key not trimmed: %q", in.PublicKey)
	}
}

func TestValidatePlayRejectsMissingFields(t *testing.T) {
	cases := []PlayParsed{
		{},
		{PublicKey: "4Nd1mYQqkbDRyXAMSxLPqbEVzRyQmc8G5YLKYSbS9eGP"},
		{PlayerChoice: "rock"},
		{PublicKey: "not-base58!", PlayerChoice: "rock"},
	}
	for i, c := range cases {
		if ok, _ := ValidatePlay(&c); ok {
			t.Fatalf("case %d should be rejected: %+v", i, c)
		}
	}
}

func TestValidateWithdraw(t *testing.T) {
	in := WithdrawParsed{PublicKey: "4Nd1mYQqkbDRyXAMSxLPqbEVzRyQmc8G5YLKYSbS9eGP"}
	if ok, msg := ValidateWithdraw(&in); !ok {
		t.Fatalf("validate: %s", msg)
	}
	bad := WithdrawParsed{PublicKey: "nope"}
	if ok, _ := ValidateWithdraw(&bad); ok {
		t.Fatal("should reject invalid public key")
	}
}
