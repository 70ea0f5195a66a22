package dashboard

const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Proton Drive Sync</title>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body {
            font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
            background: #f5f5f5;
        }
        .container { max-width: 1200px; margin: 0 auto; padding: 2rem; }
        .header {
            background: white;
            padding: 1.5rem 2rem;
            border-radius: 8px;
            margin-bottom: 2rem;
            box-shadow: 0 1px 3px rgba(0,0,0,0.1);
        }
        .header h1 { color: #6d4aff; font-size: 1.5rem; }
        .card {
            background: white;
            border-radius: 8px;
            padding: 1.5rem;
            margin-bottom: 1.5rem;
            box-shadow: 0 1px 3px rgba(0,0,0,0.1);
        }
        .card h2 { font-size: 1.25rem; margin-bottom: 1rem; color: #333; }
        .stat { display: inline-block; margin-right: 2rem; }
        .stat-value { font-size: 2rem; font-weight: bold; color: #6d4aff; }
        .stat-label { color: #666; font-size: 0.875rem; }
        .sync-dir {
            padding: 0.75rem;
            background: #f9f9f9;
            border-radius: 4px;
            margin-bottom: 0.5rem;
        }
        .sync-dir:last-child { margin-bottom: 0; }
        .sync-dir-path { font-family: monospace; color: #333; }
        .sync-dir-arrow { color: #999; margin: 0 0.5rem; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>Proton Drive Sync Dashboard</h1>
        </div>

        <div class="card">
            <h2>Status</h2>
            <div class="stat">
                <div class="stat-value" id="state">-</div>
                <div class="stat-label">State</div>
            </div>
            <div class="stat">
                <div class="stat-value" id="pending">-</div>
                <div class="stat-label">Pending</div>
            </div>
            <div class="stat">
                <div class="stat-value" id="synced">-</div>
                <div class="stat-label">Synced</div>
            </div>
            <div class="stat">
                <div class="stat-value" id="blocked">-</div>
                <div class="stat-label">Blocked</div>
            </div>
            <div class="stat">
                <div class="stat-value" id="concurrency">-</div>
                <div class="stat-label">Concurrency</div>
            </div>
        </div>

        <div class="card">
            <h2>Sync Directories</h2>
            <div id="sync-dirs-list">Loading...</div>
        </div>
    </div>

    <script>
        async function loadStatus() {
            try {
                const response = await fetch('/api/status');
                const data = await response.json();

                const state = !data.running ? 'stopped' : (data.paused ? 'paused' : 'running');
                document.getElementById('state').textContent = state;
                document.getElementById('pending').textContent = data.jobs.pending;
                document.getElementById('synced').textContent = data.jobs.synced;
                document.getElementById('blocked').textContent = data.jobs.blocked;
                document.getElementById('concurrency').textContent = data.concurrency;
            } catch (error) {
                console.error('Error loading status:', error);
            }
        }

        async function loadConfig() {
            try {
                const response = await fetch('/api/config');
                const data = await response.json();

                const syncDirsList = document.getElementById('sync-dirs-list');

                if (!data.sync_dirs || data.sync_dirs.length === 0) {
                    syncDirsList.innerHTML = '<p style="color: #999;">No sync directories configured</p>';
                    return;
                }

                syncDirsList.innerHTML = data.sync_dirs.map(dir => ` + "`" + `
                    <div class="sync-dir">
                        <span class="sync-dir-path">${dir.source_path}</span>
                        <span class="sync-dir-arrow">&rarr;</span>
                        <span class="sync-dir-path">${dir.remote_root}</span>
                    </div>
                ` + "`" + `).join('');
            } catch (error) {
                console.error('Error loading config:', error);
            }
        }

        loadStatus();
        loadConfig();
        setInterval(() => { loadStatus(); loadConfig(); }, 5000);
    </script>
</body>
</html>
`
