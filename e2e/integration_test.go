//go:build e2e

// Package e2e contains end-to-end integration tests using real DynamoDB tables.
// Run with: go test -tags=e2e -v ./e2e/...
//
// CARTE_E2E_PROFILE selects a shared AWS profile and CARTE_E2E_ENDPOINT points
// the client at a local DynamoDB (e.g. http://localhost:8000).
package e2e

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/google/uuid"

	"github.com/jacentio/carte/api"
	"github.com/jacentio/carte/backend/dynamo"
	"github.com/jacentio/carte/store"
)

// Table names are unique per test run to avoid conflicts.
const tablePrefix = "carte-e2e-test"

var (
	testID      string
	tableConfig dynamo.Config

	ddbClient *dynamodb.Client
	testStore *store.Store
	server    *httptest.Server
)

// --- Test Setup & Teardown ---

func TestMain(m *testing.M) {
	testID = uuid.New().String()[:8]
	tableConfig = dynamo.Config{TablePrefix: fmt.Sprintf("%s-%s-", tablePrefix, testID)}

	fmt.Printf("Test ID: %s\n", testID)
	fmt.Printf("Tables:\n")
	for _, kind := range store.Kinds() {
		fmt.Printf("  - %s: %s\n", kind.Title(), tableConfig.TableName(kind))
	}

	ctx := context.Background()
	var opts []func(*config.LoadOptions) error
	if profile := os.Getenv("CARTE_E2E_PROFILE"); profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(profile))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		fmt.Printf("Failed to load AWS config: %v\n", err)
		os.Exit(1)
	}

	ddbClient = dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if endpoint := os.Getenv("CARTE_E2E_ENDPOINT"); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	fmt.Println("Creating test tables...")
	if err := dynamo.CreateTables(ctx, ddbClient, tableConfig, 2*time.Minute); err != nil {
		fmt.Printf("Failed to create tables: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("All tables created and active")

	testStore = store.New(dynamo.New(ddbClient, tableConfig), store.DefaultConfig())
	server = httptest.NewServer(api.New(testStore, nil, nil).Handler())

	code := m.Run()

	server.Close()
	deleteTables(ctx)

	os.Exit(code)
}

func deleteTables(ctx context.Context) {
	fmt.Println("Deleting test tables...")
	for _, kind := range store.Kinds() {
		name := tableConfig.TableName(kind)
		if _, err := ddbClient.DeleteTable(ctx, &dynamodb.DeleteTableInput{
			TableName: aws.String(name),
		}); err != nil {
			fmt.Printf("Warning: failed to delete table %s: %v\n", name, err)
		}
	}
	fmt.Println("Tables deleted")
}

// --- Helpers ---

func doJSON(t *testing.T, method, path, body string, wantStatus int, out any) {
	t.Helper()
	req, err := http.NewRequest(method, server.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		t.Fatalf("%s %s: expected %d, got %d", method, path, wantStatus, resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("%s %s: decode: %v", method, path, err)
		}
	}
}

func createFields(t *testing.T, raw string) *store.Fields {
	t.Helper()
	f, err := store.ParseFields([]byte(raw))
	if err != nil {
		t.Fatalf("ParseFields: %v", err)
	}
	return f
}

// --- Store Tests ---

func TestCreate_AndGet(t *testing.T) {
	ctx := context.Background()

	menu, err := testStore.Create(ctx, store.KindMenu, createFields(t, `{"title":"E2E"}`))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := testStore.Get(ctx, store.KindMenu, menu.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v, _ := got.Fields.Get("title"); string(v) != `"E2E"` {
		t.Errorf("expected title E2E, got %s", v)
	}
}

func TestCreate_MissingParent(t *testing.T) {
	_, err := testStore.Create(context.Background(), store.KindCategory, createFields(t, `{"menuId":"`+uuid.NewString()+`"}`))
	if !errors.Is(err, store.ErrParentNotFound) {
		t.Errorf("expected parent not found, got %v", err)
	}
}

func TestUpdate_Merge(t *testing.T) {
	ctx := context.Background()

	menu, err := testStore.Create(ctx, store.KindMenu, createFields(t, `{"a":1}`))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	updated, err := testStore.Update(ctx, store.KindMenu, menu.ID, createFields(t, `{"b":2}`))
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if keys := updated.Fields.Keys(); len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
		t.Errorf("expected fields [a b], got %v", keys)
	}
}

func TestDelete_CascadesThroughTables(t *testing.T) {
	ctx := context.Background()

	menu, err := testStore.Create(ctx, store.KindMenu, createFields(t, `{}`))
	if err != nil {
		t.Fatalf("Create menu: %v", err)
	}
	cat, err := testStore.Create(ctx, store.KindCategory, createFields(t, `{"menuId":"`+menu.ID+`"}`))
	if err != nil {
		t.Fatalf("Create category: %v", err)
	}
	dish, err := testStore.Create(ctx, store.KindDish, createFields(t, `{"categoryId":"`+cat.ID+`"}`))
	if err != nil {
		t.Fatalf("Create dish: %v", err)
	}

	plan, err := testStore.Delete(ctx, store.KindMenu, menu.ID)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !plan.Contains(store.KindDish, dish.ID) {
		t.Errorf("expected plan to remove dish %s", dish.ID)
	}

	for kind, id := range map[store.Kind]string{
		store.KindMenu:     menu.ID,
		store.KindCategory: cat.ID,
		store.KindDish:     dish.ID,
	} {
		if _, err := testStore.Get(ctx, kind, id); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("expected %s %s to be gone, got %v", kind, id, err)
		}
	}
}

// --- HTTP Scenario ---

func TestHTTP_Scenario(t *testing.T) {
	var menu, cat, dish map[string]any
	doJSON(t, http.MethodPost, "/menus", `{"title":"Scenario"}`, http.StatusCreated, &menu)
	mid := menu["id"].(string)

	doJSON(t, http.MethodPost, "/categories", `{"menuId":"`+mid+`"}`, http.StatusCreated, &cat)
	cid := cat["id"].(string)

	doJSON(t, http.MethodPost, "/dishes", `{"categoryId":"`+cid+`","price":5}`, http.StatusCreated, &dish)
	did := dish["id"].(string)

	var cats []map[string]any
	doJSON(t, http.MethodGet, "/menus/"+mid+"/categories", "", http.StatusOK, &cats)
	if len(cats) != 1 || cats[0]["id"] != cid {
		t.Errorf("expected [%s], got %v", cid, cats)
	}

	doJSON(t, http.MethodDelete, "/menus/"+mid, "", http.StatusNoContent, nil)
	doJSON(t, http.MethodGet, "/dishes/"+did, "", http.StatusNotFound, nil)
	doJSON(t, http.MethodGet, "/categories/"+cid, "", http.StatusNotFound, nil)
}
