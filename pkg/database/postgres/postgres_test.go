package postgres

import "testing"

func TestConnectionInfo_DSN(t *testing.T) {
	info := ConnectionInfo{
		Host:     "db.internal",
		Port:     6432,
		Username: "ledger",
		DBName:   "fees",
		SSLMode:  "require",
		Password: "secret",
	}
	want := "host=db.internal port=6432 user=ledger dbname=fees sslmode=require password=secret"
	if got := info.DSN(); got != want {
		t.Fatalf("expected %q; got %q", want, got)
	}
}
