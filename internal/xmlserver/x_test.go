package xmlserver

import (
	"context"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/xmlls/xmlls/internal/jsonrpc"
	"github.com/xmlls/xmlls/internal/locator"
	"github.com/xmlls/xmlls/internal/lsp"
)

const (
	POM_URI         = "file:///work/pom.xml"
	POM_SCHEMA_PATH = "/xsd/maven-4.0.0.xsd"

	POM_SCHEMA = `<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema" targetNamespace="http://maven.apache.org/POM/4.0.0"
	xmlns="http://maven.apache.org/POM/4.0.0" elementFormDefault="qualified">
  <xs:element name="project" type="Model"/>
  <xs:complexType name="Model">
    <xs:all>
      <xs:element name="modelVersion" type="xs:string"/>
      <xs:element name="groupId" type="xs:string" minOccurs="0"/>
      <xs:element name="artifactId" type="xs:string" minOccurs="0"/>
    </xs:all>
  </xs:complexType>
</xs:schema>`

	VALID_POM   = "<project>\n  <modelVersion>4.0.0</modelVersion>\n</project>\n"
	INVALID_POM = "<project>\n</project>\n"

	WAIT_TIMEOUT = 3 * time.Second
)

var POM_LOCATORS = []interface{}{
	map[string]interface{}{
		"patterns": []interface{}{
			map[string]interface{}{"pattern": "pom.xml", "path": POM_SCHEMA_PATH, "useDefaultNamespace": true},
		},
	},
}

//utils

type testClient struct {
	outgoing  chan []byte
	closeOnce sync.Once
	nextID    atomic.Int64

	lock     sync.Mutex
	received []map[string]interface{}

	msgReaderWriter jsonrpc.MessageReaderWriter
}

func newTestClient() *testClient {
	client := &testClient{
		outgoing: make(chan []byte, 50),
	}
	client.msgReaderWriter = jsonrpc.FnMessageReaderWriter{
		ReadMessageFn: func() ([]byte, error) {
			msg, ok := <-client.outgoing
			if !ok {
				return nil, io.EOF
			}
			return msg, nil
		},
		WriteMessageFn: func(msg []byte) error {
			var m map[string]interface{}
			if err := json.Unmarshal(msg, &m); err != nil {
				return err
			}
			client.lock.Lock()
			client.received = append(client.received, m)
			client.lock.Unlock()
			return nil
		},
	}
	return client
}

func (c *testClient) close() {
	c.closeOnce.Do(func() {
		close(c.outgoing)
	})
}

func (c *testClient) send(t *testing.T, msg interface{}) {
	bytes, err := json.Marshal(msg)
	require.NoError(t, err)
	c.outgoing <- bytes
}

func (c *testClient) notify(t *testing.T, method string, params interface{}) {
	c.send(t, map[string]interface{}{"jsonrpc": "2.0", "method": method, "params": params})
}

// request sends a request and waits for the response.
func (c *testClient) request(t *testing.T, method string, params interface{}) map[string]interface{} {
	id := c.nextID.Add(1)
	c.send(t, map[string]interface{}{"jsonrpc": "2.0", "id": id, "method": method, "params": params})

	return c.waitFor(t, func(m map[string]interface{}) bool {
		responseID, ok := m["id"].(float64)
		return ok && int64(responseID) == id && m["method"] == nil
	})
}

func (c *testClient) waitFor(t *testing.T, match func(m map[string]interface{}) bool) map[string]interface{} {
	var found map[string]interface{}

	ok := assert.Eventually(t, func() bool {
		c.lock.Lock()
		defer c.lock.Unlock()
		for _, m := range c.received {
			if match(m) {
				found = m
				return true
			}
		}
		return false
	}, WAIT_TIMEOUT, 5*time.Millisecond)

	if !ok {
		t.FailNow()
	}
	return found
}

func (c *testClient) notifications(method string) []map[string]interface{} {
	c.lock.Lock()
	defer c.lock.Unlock()

	var result []map[string]interface{}
	for _, m := range c.received {
		if m["method"] == method {
			result = append(result, m["params"].(map[string]interface{}))
		}
	}
	return result
}

// publications returns the diagnostics notifications of a document.
func (c *testClient) publications(uri string) []map[string]interface{} {
	var result []map[string]interface{}
	for _, params := range c.notifications("textDocument/publishDiagnostics") {
		if params["uri"] == uri {
			result = append(result, params)
		}
	}
	return result
}

// waitForPublication waits for the first publication of a document version and returns its diagnostics.
func (c *testClient) waitForPublication(t *testing.T, uri string, version int) []interface{} {
	return c.waitForDiagnosticCount(t, uri, version, -1)
}

// waitForDiagnosticCount waits for a publication of a document version with count diagnostics, any count
// is accepted if count is negative.
func (c *testClient) waitForDiagnosticCount(t *testing.T, uri string, version int, count int) []interface{} {
	m := c.waitFor(t, func(m map[string]interface{}) bool {
		if m["method"] != "textDocument/publishDiagnostics" {
			return false
		}
		params := m["params"].(map[string]interface{})
		if params["uri"] != uri || params["version"] != float64(version) {
			return false
		}
		return count < 0 || len(params["diagnostics"].([]interface{})) == count
	})
	return m["params"].(map[string]interface{})["diagnostics"].([]interface{})
}

func (c *testClient) initialize(t *testing.T, locators interface{}) map[string]interface{} {
	params := map[string]interface{}{
		"processId":    nil,
		"rootUri":      "file:///work",
		"capabilities": map[string]interface{}{},
	}
	if locators != nil {
		params["initializationOptions"] = map[string]interface{}{"schemaLocators": locators}
	}

	resp := c.request(t, "initialize", params)
	require.Nil(t, resp["error"])
	c.notify(t, "initialized", map[string]interface{}{})
	return resp["result"].(map[string]interface{})
}

func (c *testClient) open(t *testing.T, uri string, version int, text string) {
	c.notify(t, "textDocument/didOpen", map[string]interface{}{
		"textDocument": map[string]interface{}{"uri": uri, "languageId": "xml", "version": version, "text": text},
	})
}

func (c *testClient) replaceText(t *testing.T, uri string, version int, text string) {
	c.notify(t, "textDocument/didChange", map[string]interface{}{
		"textDocument":   map[string]interface{}{"uri": uri, "version": version},
		"contentChanges": []interface{}{map[string]interface{}{"text": text}},
	})
}

func newTestFilesystem(t *testing.T) billy.Filesystem {
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, POM_SCHEMA_PATH, []byte(POM_SCHEMA), 0o600))
	return fs
}

// startTestServer serves a session for a new test client, the returned function closes the client and waits
// for the server to stop.
func startTestServer(t *testing.T, opts Options) (*testClient, func()) {
	if opts.Filesystem == nil {
		opts.Filesystem = newTestFilesystem(t)
	}
	opts.Logger = zerolog.Nop()
	opts.WorkDir = "/work"
	opts.Version = "test"

	client := newTestClient()
	done := make(chan struct{})

	go func() {
		defer close(done)
		err := Run(context.Background(), opts, lsp.Config{MessageReaderWriter: client.msgReaderWriter})
		assert.NoError(t, err)
	}()

	stop := func() {
		client.close()
		select {
		case <-done:
		case <-time.After(WAIT_TIMEOUT):
			t.Error("server did not stop")
		}
	}
	t.Cleanup(stop)
	return client, stop
}

//tests

func TestInitialize(t *testing.T) {
	client, _ := startTestServer(t, Options{})
	result := client.initialize(t, nil)

	capabilities := result["capabilities"].(map[string]interface{})
	assert.Equal(t, map[string]interface{}{
		"openClose": true,
		"change":    float64(2),
		"save":      map[string]interface{}{"includeText": true},
	}, capabilities["textDocumentSync"])

	assert.Equal(t, map[string]interface{}{"triggerCharacters": []interface{}{"<"}}, capabilities["completionProvider"])
	assert.Equal(t, map[string]interface{}{"name": SERVER_NAME, "version": "test"}, result["serverInfo"])
}

func TestConfigurationRegistration(t *testing.T) {

	t.Run("dynamic registration supported", func(t *testing.T) {
		client, _ := startTestServer(t, Options{})

		resp := client.request(t, "initialize", map[string]interface{}{
			"processId": nil,
			"rootUri":   "file:///work",
			"capabilities": map[string]interface{}{
				"workspace": map[string]interface{}{
					"didChangeConfiguration": map[string]interface{}{"dynamicRegistration": true},
				},
			},
		})
		require.Nil(t, resp["error"])
		client.notify(t, "initialized", map[string]interface{}{})

		req := client.waitFor(t, func(m map[string]interface{}) bool {
			return m["method"] == "client/registerCapability"
		})
		require.IsType(t, "", req["id"])

		registrations := req["params"].(map[string]interface{})["registrations"].([]interface{})
		require.Len(t, registrations, 1)
		assert.Equal(t, "workspace/didChangeConfiguration", registrations[0].(map[string]interface{})["method"])

		client.send(t, map[string]interface{}{"jsonrpc": "2.0", "id": req["id"], "result": nil})

		//the session is still usable.
		client.notify(t, "workspace/didChangeConfiguration", map[string]interface{}{
			"settings": map[string]interface{}{
				"xmlls": map[string]interface{}{"schemaLocators": POM_LOCATORS},
			},
		})
		client.open(t, POM_URI, 1, INVALID_POM)
		assert.Len(t, client.waitForPublication(t, POM_URI, 1), 1)
	})

	t.Run("dynamic registration not supported", func(t *testing.T) {
		client, _ := startTestServer(t, Options{})
		client.initialize(t, nil)

		client.open(t, POM_URI, 1, VALID_POM)
		client.waitForPublication(t, POM_URI, 1)
		assert.Empty(t, client.notifications("client/registerCapability"))
	})
}

func TestPomScenario(t *testing.T) {
	client, _ := startTestServer(t, Options{DebounceDelay: 50 * time.Millisecond})
	client.initialize(t, POM_LOCATORS)

	client.open(t, POM_URI, 1, VALID_POM)
	assert.Empty(t, client.waitForPublication(t, POM_URI, 1))

	client.replaceText(t, POM_URI, 2, INVALID_POM)
	diagnostics := client.waitForPublication(t, POM_URI, 2)
	require.Len(t, diagnostics, 1)

	diagnostic := diagnostics[0].(map[string]interface{})
	assert.Contains(t, diagnostic["message"], "Missing child element(s)")
	assert.Contains(t, diagnostic["message"], "modelVersion")
	assert.Equal(t, "xmlls", diagnostic["source"])
	assert.EqualValues(t, 1, diagnostic["severity"])
	assert.EqualValues(t, 0, diagnostic["range"].(map[string]interface{})["start"].(map[string]interface{})["line"])

	client.replaceText(t, POM_URI, 3, "<project>\n  <\n</project>\n")
	resp := client.request(t, "textDocument/completion", map[string]interface{}{
		"textDocument": map[string]interface{}{"uri": POM_URI},
		"position":     map[string]interface{}{"line": 1, "character": 3},
	})
	require.Nil(t, resp["error"])

	var labels []string
	var insertTexts []string
	for _, item := range resp["result"].([]interface{}) {
		labels = append(labels, item.(map[string]interface{})["label"].(string))
		insertTexts = append(insertTexts, item.(map[string]interface{})["insertText"].(string))
	}
	assert.Equal(t, []string{"artifactId", "groupId", "modelVersion", "close project"}, labels)
	assert.Equal(t, "modelVersion", insertTexts[2])

	client.replaceText(t, POM_URI, 4, VALID_POM)
	assert.Empty(t, client.waitForPublication(t, POM_URI, 4))
}

func TestDebounce(t *testing.T) {
	const delay = 150 * time.Millisecond

	client, _ := startTestServer(t, Options{DebounceDelay: delay})
	client.initialize(t, POM_LOCATORS)

	client.open(t, POM_URI, 1, VALID_POM)
	client.waitForPublication(t, POM_URI, 1)

	for version := 2; version <= 6; version++ {
		client.replaceText(t, POM_URI, version, INVALID_POM)
	}

	assert.Len(t, client.waitForPublication(t, POM_URI, 6), 1)

	time.Sleep(2 * delay)
	publications := client.publications(POM_URI)
	if assert.Len(t, publications, 2) {
		assert.EqualValues(t, 6, publications[1]["version"])
	}

	t.Run("save validates immediately", func(t *testing.T) {
		client.replaceText(t, POM_URI, 7, VALID_POM)
		client.notify(t, "textDocument/didSave", map[string]interface{}{
			"textDocument": map[string]interface{}{"uri": POM_URI},
		})

		assert.Empty(t, client.waitForPublication(t, POM_URI, 7))
	})

	t.Run("save with text", func(t *testing.T) {
		client.notify(t, "textDocument/didSave", map[string]interface{}{
			"textDocument": map[string]interface{}{"uri": POM_URI},
			"text":         INVALID_POM,
		})

		client.waitForDiagnosticCount(t, POM_URI, 7, 1)
	})
}

func TestNoSchema(t *testing.T) {
	client, _ := startTestServer(t, Options{})
	client.initialize(t, nil)

	t.Run("well-formed document", func(t *testing.T) {
		client.open(t, "file:///work/a.xml", 1, "<a><b/></a>")
		assert.Empty(t, client.waitForPublication(t, "file:///work/a.xml", 1))
	})

	t.Run("malformed document", func(t *testing.T) {
		client.open(t, "file:///work/b.xml", 1, "<a>\n<b></a>")
		diagnostics := client.waitForPublication(t, "file:///work/b.xml", 1)
		assert.NotEmpty(t, diagnostics)
	})

	t.Run("completion", func(t *testing.T) {
		resp := client.request(t, "textDocument/completion", map[string]interface{}{
			"textDocument": map[string]interface{}{"uri": "file:///work/a.xml"},
			"position":     map[string]interface{}{"line": 0, "character": 3},
		})
		require.Nil(t, resp["error"])
		assert.Equal(t, []interface{}{}, resp["result"])
	})
}

func TestSchemaLoadError(t *testing.T) {
	client, _ := startTestServer(t, Options{})
	client.initialize(t, []interface{}{
		map[string]interface{}{
			"patterns": []interface{}{
				map[string]interface{}{"pattern": "*.xml", "path": "/xsd/missing.xsd"},
			},
		},
	})

	client.open(t, "file:///work/a.xml", 1, "<a>\n<b></a>")
	diagnostics := client.waitForPublication(t, "file:///work/a.xml", 1)
	require.GreaterOrEqual(t, len(diagnostics), 2)

	first := diagnostics[0].(map[string]interface{})
	assert.Equal(t, "schema-load-error", first["code"])
	assert.Contains(t, first["message"], "/xsd/missing.xsd")
	assert.Equal(t, map[string]interface{}{
		"start": map[string]interface{}{"line": float64(0), "character": float64(0)},
		"end":   map[string]interface{}{"line": float64(0), "character": float64(3)},
	}, first["range"])
}

func TestInvalidLocators(t *testing.T) {
	client, _ := startTestServer(t, Options{})
	client.initialize(t, []interface{}{
		map[string]interface{}{"rootElement": true},
		POM_LOCATORS[0],
	})

	messages := client.notifications("window/showMessage")
	require.Len(t, messages, 1)
	assert.EqualValues(t, 2, messages[0]["type"])

	//the valid locator is used.
	client.open(t, POM_URI, 1, INVALID_POM)
	assert.Len(t, client.waitForPublication(t, POM_URI, 1), 1)
}

func TestConfigurationChange(t *testing.T) {
	client, _ := startTestServer(t, Options{})
	client.initialize(t, nil)

	client.open(t, POM_URI, 1, INVALID_POM)
	assert.Empty(t, client.waitForPublication(t, POM_URI, 1))

	client.notify(t, "workspace/didChangeConfiguration", map[string]interface{}{
		"settings": map[string]interface{}{
			"xmlls": map[string]interface{}{"schemaLocators": POM_LOCATORS},
		},
	})

	time.Sleep(100 * time.Millisecond)
	assert.Len(t, client.publications(POM_URI), 1)

	client.notify(t, "textDocument/didSave", map[string]interface{}{
		"textDocument": map[string]interface{}{"uri": POM_URI},
	})

	client.waitForDiagnosticCount(t, POM_URI, 1, 1)
}

func TestDefaultLocators(t *testing.T) {
	locators, err := locator.ParseLocators(POM_LOCATORS)
	require.NoError(t, err)

	client, _ := startTestServer(t, Options{DefaultLocators: locators})
	client.initialize(t, nil)

	client.open(t, POM_URI, 1, INVALID_POM)
	assert.Len(t, client.waitForPublication(t, POM_URI, 1), 1)
}

func TestClose(t *testing.T) {
	const delay = 100 * time.Millisecond

	client, _ := startTestServer(t, Options{DebounceDelay: delay})
	client.initialize(t, POM_LOCATORS)

	client.open(t, POM_URI, 1, VALID_POM)
	client.waitForPublication(t, POM_URI, 1)

	client.replaceText(t, POM_URI, 2, INVALID_POM)
	client.notify(t, "textDocument/didClose", map[string]interface{}{
		"textDocument": map[string]interface{}{"uri": POM_URI},
	})

	time.Sleep(3 * delay)
	assert.Len(t, client.publications(POM_URI), 1)

	resp := client.request(t, "textDocument/completion", map[string]interface{}{
		"textDocument": map[string]interface{}{"uri": POM_URI},
		"position":     map[string]interface{}{"line": 0, "character": 0},
	})
	require.Nil(t, resp["error"])
	assert.Equal(t, []interface{}{}, resp["result"])

	t.Run("reopen", func(t *testing.T) {
		//the publication of the first opening has the same version.
		client.open(t, POM_URI, 1, INVALID_POM)
		client.waitForDiagnosticCount(t, POM_URI, 1, 1)

		publications := client.publications(POM_URI)
		if assert.Len(t, publications, 2) {
			assert.Empty(t, publications[0]["diagnostics"])
			assert.Len(t, publications[1]["diagnostics"], 1)
		}
	})
}

func TestDocumentThatIsNotAFile(t *testing.T) {
	const uri = "untitled:Untitled-1"

	fls := newTestFilesystem(t)
	require.NoError(t, util.WriteFile(fls, "/xsd/project.xsd", []byte(POM_SCHEMA), 0o600))

	client, _ := startTestServer(t, Options{Filesystem: fls})
	client.initialize(t, []interface{}{
		map[string]interface{}{"rootElement": true, "searchPaths": []interface{}{"/xsd"}},
	})

	//the root element is not in the target namespace of the schema.
	client.open(t, uri, 1, INVALID_POM)
	diagnostics := client.waitForPublication(t, uri, 1)
	require.NotEmpty(t, diagnostics)
	assert.Contains(t, diagnostics[0].(map[string]interface{})["message"], "No matching global declaration")
}

// panickingFilesystem panics the first time the file at path is checked.
type panickingFilesystem struct {
	billy.Filesystem
	path     string
	panicked atomic.Bool
}

func (fs *panickingFilesystem) Stat(filename string) (os.FileInfo, error) {
	if filename == fs.path && fs.panicked.CompareAndSwap(false, true) {
		panic("stat failure")
	}
	return fs.Filesystem.Stat(filename)
}

func TestPanickingValidation(t *testing.T) {
	const uri = "file:///work/project.xml"

	fls := newTestFilesystem(t)
	require.NoError(t, util.WriteFile(fls, "/xsd/project.xsd", []byte(POM_SCHEMA), 0o600))
	panicking := &panickingFilesystem{Filesystem: fls, path: "/xsd/project.xsd"}

	client, _ := startTestServer(t, Options{Filesystem: panicking, DebounceDelay: 20 * time.Millisecond})
	client.initialize(t, []interface{}{
		map[string]interface{}{"rootElement": true, "searchPaths": []interface{}{"/xsd"}},
	})

	client.open(t, uri, 1, INVALID_POM)
	require.Eventually(t, panicking.panicked.Load, WAIT_TIMEOUT, 5*time.Millisecond)

	//the document is validated again after a change.
	client.replaceText(t, uri, 2, INVALID_POM)
	diagnostics := client.waitForPublication(t, uri, 2)
	assert.NotEmpty(t, diagnostics)

	for _, publication := range client.publications(uri) {
		assert.NotEqual(t, float64(1), publication["version"])
	}
}

func TestShutdown(t *testing.T) {
	ignore := goleak.IgnoreCurrent()

	client, stop := startTestServer(t, Options{})
	client.initialize(t, POM_LOCATORS)

	client.open(t, POM_URI, 1, VALID_POM)
	client.waitForPublication(t, POM_URI, 1)

	resp := client.request(t, "shutdown", nil)
	assert.Nil(t, resp["error"])

	resp = client.request(t, "textDocument/completion", map[string]interface{}{
		"textDocument": map[string]interface{}{"uri": POM_URI},
		"position":     map[string]interface{}{"line": 0, "character": 0},
	})
	if assert.NotNil(t, resp["error"]) {
		assert.EqualValues(t, jsonrpc.InvalidRequestCode, resp["error"].(map[string]interface{})["code"])
	}

	client.notify(t, "exit", nil)
	stop()

	goleak.VerifyNone(t, ignore)
}
