package ldb

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/kaspanet/reachability/infrastructure/db/database"
)

func populateBucket(t *testing.T, testName string, db *LevelDB, bucket *database.Bucket, count int) {
	for i := 0; i < count; i++ {
		err := db.Put(bucket.Key([]byte(fmt.Sprintf("key%d", i))), []byte(fmt.Sprintf("value%d", i)))
		if err != nil {
			t.Fatalf("%s: Put unexpectedly failed: %s", testName, err)
		}
	}
}

func checkCursorPosition(t *testing.T, testName string, cursor database.Cursor, expectedSuffix, expectedValue string) {
	key, err := cursor.Key()
	if err != nil {
		t.Fatalf("%s: Key unexpectedly failed: %s", testName, err)
	}
	if string(key.Suffix()) != expectedSuffix {
		t.Fatalf("%s: Key returned wrong suffix. Want: %s, got: %s",
			testName, expectedSuffix, string(key.Suffix()))
	}
	value, err := cursor.Value()
	if err != nil {
		t.Fatalf("%s: Value unexpectedly failed: %s", testName, err)
	}
	if !bytes.Equal(value, []byte(expectedValue)) {
		t.Fatalf("%s: Value returned wrong value. Want: %s, got: %s",
			testName, expectedValue, string(value))
	}
}

func TestCursorIteratesOnlyItsBucket(t *testing.T) {
	db, teardownFunc := prepareDatabaseForTest(t, "TestCursorIteratesOnlyItsBucket")
	defer teardownFunc()

	bucket := database.MakeBucket([]byte("reachability"))
	populateBucket(t, "TestCursorIteratesOnlyItsBucket", db, bucket, 5)
	populateBucket(t, "TestCursorIteratesOnlyItsBucket", db, database.MakeBucket([]byte("other")), 3)

	cursor, err := db.Cursor(bucket)
	if err != nil {
		t.Fatalf("TestCursorIteratesOnlyItsBucket: Cursor unexpectedly failed: %s", err)
	}
	defer cursor.Close()

	count := 0
	for ok := cursor.First(); ok; ok = cursor.Next() {
		checkCursorPosition(t, "TestCursorIteratesOnlyItsBucket", cursor,
			fmt.Sprintf("key%d", count), fmt.Sprintf("value%d", count))
		count++
	}
	if count != 5 {
		t.Fatalf("TestCursorIteratesOnlyItsBucket: expected 5 entries, got %d", count)
	}
}

func TestCursorSeek(t *testing.T) {
	db, teardownFunc := prepareDatabaseForTest(t, "TestCursorSeek")
	defer teardownFunc()

	bucket := database.MakeBucket([]byte("bucket"))
	populateBucket(t, "TestCursorSeek", db, bucket, 10)

	cursor, err := db.Cursor(bucket)
	if err != nil {
		t.Fatalf("TestCursorSeek: Cursor unexpectedly failed: %s", err)
	}
	defer cursor.Close()

	err = cursor.Seek(database.MakeBucket().Key([]byte("missing")))
	if !database.IsNotFoundError(err) {
		t.Fatalf("TestCursorSeek: Seek expected ErrNotFound, got: %v", err)
	}

	err = cursor.Seek(bucket.Key([]byte("key9")))
	if err != nil {
		t.Fatalf("TestCursorSeek: Seek unexpectedly failed: %s", err)
	}
	checkCursorPosition(t, "TestCursorSeek", cursor, "key9", "value9")

	if cursor.Next() {
		t.Fatalf("TestCursorSeek: Next after the last entry is unexpectedly not done")
	}
	if _, err := cursor.Key(); !database.IsNotFoundError(err) {
		t.Fatalf("TestCursorSeek: Key expected ErrNotFound, got: %v", err)
	}
	if _, err := cursor.Value(); !database.IsNotFoundError(err) {
		t.Fatalf("TestCursorSeek: Value expected ErrNotFound, got: %v", err)
	}
}

func TestCursorClosed(t *testing.T) {
	db, teardownFunc := prepareDatabaseForTest(t, "TestCursorClosed")
	defer teardownFunc()

	cursor, err := db.Cursor(database.MakeBucket())
	if err != nil {
		t.Fatalf("TestCursorClosed: Cursor unexpectedly failed: %s", err)
	}
	if err := cursor.Close(); err != nil {
		t.Fatalf("TestCursorClosed: Close unexpectedly failed: %s", err)
	}

	failing := map[string]func() error{
		"Seek":  func() error { return cursor.Seek(database.MakeBucket().Key(nil)) },
		"Key":   func() error { _, err := cursor.Key(); return err },
		"Value": func() error { _, err := cursor.Value(); return err },
		"Close": cursor.Close,
	}
	for name, function := range failing {
		err := function()
		if err == nil || !strings.Contains(err.Error(), "closed cursor") {
			t.Fatalf("TestCursorClosed: %s expected a closed cursor error, got: %v", name, err)
		}
	}

	for name, function := range map[string]func() bool{"First": cursor.First, "Next": cursor.Next} {
		func() {
			defer func() {
				if recovered := recover(); recovered == nil ||
					!strings.Contains(fmt.Sprint(recovered), "closed cursor") {
					t.Fatalf("TestCursorClosed: %s expected a closed cursor panic, got: %v", name, recovered)
				}
			}()
			function()
		}()
	}
}
