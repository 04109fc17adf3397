package cdb

import (
	"database/sql"
	"os"
	"testing"

	"github.com/pregelhq/pregel/store/storetest"
	gc "gopkg.in/check.v1"
)

var _ = gc.Suite(new(CockroachDBStoreTestSuite))

func Test(t *testing.T) { gc.TestingT(t) }

type CockroachDBStoreTestSuite struct {
	storetest.SuiteBase
	db *sql.DB
}

func (s *CockroachDBStoreTestSuite) SetUpSuite(c *gc.C) {
	dsn := os.Getenv("CDB_DSN")
	if dsn == "" {
		c.Skip("Missing CDB_DSN envvar; skipping cockroachdb-backed result store test suite")
	}

	st, err := NewCockroachDBStore(dsn)
	c.Assert(err, gc.IsNil)
	s.SetStore(st)
	s.db = st.db
}

func (s *CockroachDBStoreTestSuite) SetUpTest(c *gc.C) {
	s.flushDB(c)
}

func (s *CockroachDBStoreTestSuite) TearDownSuite(c *gc.C) {
	if s.db != nil {
		s.flushDB(c)
		c.Assert(s.db.Close(), gc.IsNil)
	}
}

func (s *CockroachDBStoreTestSuite) flushDB(c *gc.C) {
	_, err := s.db.Exec("DELETE FROM vertex_results")
	c.Assert(err, gc.IsNil)
}
