package testhelpers

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"
)

func LoadFixture(name string) ([]byte, error) {
	_, file, _, _ := runtime.Caller(0)
	return os.ReadFile(filepath.Join(filepath.Dir(file), "fixtures", name))
}

// PrizeHTML is a trimmed-down TuLotero prize notification.
const PrizeHTML = `<html><head><title>TuLotero</title><style>p{color:red}</style></head><body>
<div>¡Enhorabuena! Tienes un premio de 1.234,56 €</div>
<table><tr><td>Sorteo: 03/02/26 21:00</td></tr>
<tr><td>Admin.: 28079-0001</td></tr>
<tr><td>Grupo: Amigos del bar</td></tr>
<tr><td>Apuestas: 2</td></tr>
<tr><td>Total Apuesta: 5,00 €</td></tr>
<tr><td>Combinación: 04,11,23,35,47</td></tr>
<tr><td>Estrellas: 03,09</td></tr></table>
<script>var x = "premio de 999,00 €";</script>
</body></html>`

func encode(s string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(s))
}

// GmailMessage renders a format=full Gmail message resource with a
// multipart/alternative payload holding the given HTML.
func GmailMessage(id, subject string, received time.Time, html string) map[string]any {
	return map[string]any{
		"id":           id,
		"threadId":     "thread-" + id,
		"internalDate": strconv.FormatInt(received.UnixMilli(), 10),
		"snippet":      subject,
		"payload": map[string]any{
			"partId":   "",
			"mimeType": "multipart/alternative",
			"headers": []map[string]string{
				{"name": "From", "value": "TuLotero <info@tulotero.es>"},
				{"name": "subject", "value": subject},
				{"name": "Date", "value": received.Format(time.RFC1123Z)},
			},
			"body": map[string]any{"size": 0},
			"parts": []map[string]any{
				{
					"partId":   "0",
					"mimeType": "text/html",
					"body":     map[string]any{"size": len(html), "data": encode(html)},
				},
				{
					"partId":   "1",
					"mimeType": "image/png",
					"filename": "logo.png",
					"body":     map[string]any{"size": 3, "attachmentId": "att-1"},
				},
			},
		},
	}
}

// GmailList renders one page of a messages.list response.
func GmailList(nextPageToken string, ids ...string) map[string]any {
	messages := make([]map[string]string, 0, len(ids))
	for _, id := range ids {
		messages = append(messages, map[string]string{"id": id, "threadId": "thread-" + id})
	}
	resp := map[string]any{
		"messages":           messages,
		"resultSizeEstimate": len(ids),
	}
	if nextPageToken != "" {
		resp["nextPageToken"] = nextPageToken
	}
	return resp
}
