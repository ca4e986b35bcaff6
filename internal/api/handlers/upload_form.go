package handlers

import "net/http"

// uploadFormHTML is the minimal browser form for manual uploads.
const uploadFormHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <title>Upload Payment CSV</title>
  <style>
    body { font-family: sans-serif; max-width: 40em; margin: 4em auto; }
    #result { margin-top: 1em; white-space: pre-wrap; }
  </style>
</head>
<body>
  <h1>Upload Payment CSV</h1>
  <p>CSV or TXT, up to 2048 KB. Processing happens in the background.</p>
  <form id="upload-form">
    <input type="file" name="file" accept=".csv,.txt" required>
    <button type="submit">Upload</button>
  </form>
  <div id="result"></div>
  <script>
    document.getElementById('upload-form').addEventListener('submit', async (e) => {
      e.preventDefault();
      const data = new FormData(e.target);
      const resp = await fetch('/api/payments/upload', { method: 'POST', body: data });
      const body = await resp.json();
      document.getElementById('result').textContent = JSON.stringify(body, null, 2);
    });
  </script>
</body>
</html>
`

// UploadForm handles GET / with a simple upload page.
func (h *PaymentsHandler) UploadForm(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(uploadFormHTML))
}
