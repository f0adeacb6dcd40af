package common

import "testing"

func TestArgon2id_RoundTrip(t *testing.T) {
	encoded, err := HashArgon2id("s3cret-token")
	if err != nil {
		t.Fatalf("hash err=%v", err)
	}
	ok, err := VerifyArgon2id("s3cret-token", encoded)
	if err != nil || !ok {
		t.Fatalf("verify ok=%v err=%v", ok, err)
	}
	ok, err = VerifyArgon2id("wrong", encoded)
	if err != nil || ok {
		t.Fatalf("wrong token ok=%v err=%v", ok, err)
	}
}

func TestArgon2id_BadHash(t *testing.T) {
	for _, h := range []string{"", "plain", "$argon2i$v=19$m=1,t=1,p=1$AAAA$AAAA", "$argon2id$v=19$m=x$AAAA$AAAA"} {
		if ok, err := VerifyArgon2id("x", h); ok || err == nil {
			t.Fatalf("hash %q ok=%v err=%v", h, ok, err)
		}
	}
}
