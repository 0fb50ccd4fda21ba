// Package swagger serves the API contract and a Swagger UI page for it.
package swagger

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	apicontract "github.com/tuanvumaihuynh/storefront/api-contract"
)

const (
	docsURL     = "/docs"
	specYAMLURL = "/docs/openapi.yml"
	specJSONURL = "/docs/openapi.json"

	swaggerUIVersion = "5.29.3"
)

// Register mounts the docs page and the contract in YAML and JSON form.
func Register(r chi.Router) {
	page := []byte(docsPage(specJSONURL))
	r.Get(docsURL, func(w http.ResponseWriter, _ *http.Request) {
		write(w, "text/html; charset=utf-8", page)
	})

	specYAML := apicontract.GetSpecBytes()
	r.Get(specYAMLURL, func(w http.ResponseWriter, _ *http.Request) {
		write(w, "application/yaml", specYAML)
	})

	specJSON := sync.OnceValues(func() ([]byte, error) {
		doc, err := apicontract.Load(context.Background())
		if err != nil {
			return nil, err
		}
		return json.Marshal(doc)
	})
	r.Get(specJSONURL, func(w http.ResponseWriter, _ *http.Request) {
		b, err := specJSON()
		if err != nil {
			http.Error(w, "api contract unavailable", http.StatusInternalServerError)
			return
		}
		write(w, "application/json", b)
	})
}

func write(w http.ResponseWriter, contentType string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck
	w.Write(body)
}

func docsPage(specURL string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>Storefront API</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@%[1]s/swagger-ui.css" />
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://unpkg.com/swagger-ui-dist@%[1]s/swagger-ui-bundle.js" crossorigin></script>
<script>
  window.onload = () => {
    window.ui = SwaggerUIBundle({
      url: '%[2]s',
      dom_id: '#swagger-ui',
      deepLinking: true,
      persistAuthorization: true,
    });
  };
</script>
</body>
</html>
`, swaggerUIVersion, specURL)
}
