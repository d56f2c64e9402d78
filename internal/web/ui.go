package web

const indexHTML = `<!DOCTYPE html>
<html>
<head>
    <title>pktstream</title>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <link href="https://cdn.jsdelivr.net/npm/bootstrap@5.3.0/dist/css/bootstrap.min.css" rel="stylesheet">
    <style>
        body { background-color: #f8f9fa; }
        .card { margin-bottom: 20px; box-shadow: 0 4px 6px rgba(0,0,0,0.1); }
        #packets { max-height: 420px; overflow-y: auto; font-family: monospace; font-size: 0.85rem; }
        .navbar-brand { font-weight: bold; color: #0d6efd !important; }
    </style>
</head>
<body>
    <nav class="navbar navbar-dark bg-dark mb-4">
        <div class="container">
            <a class="navbar-brand" href="#">📡 pktstream <small class="text-muted">Live Capture</small></a>
            <span id="conn-status" class="badge bg-secondary">Disconnected</span>
        </div>
    </nav>

    <div class="container">
        <div class="card">
            <div class="card-body d-flex align-items-center">
                <input type="number" id="duration" class="form-control me-2" value="30" min="1" style="width: 120px;">
                <button class="btn btn-primary me-3" onclick="startCapture()">Start Capture</button>
                <span id="status" class="text-muted">Idle</span>
            </div>
        </div>

        <div class="row">
            <div class="col-md-8">
                <div class="card">
                    <div class="card-header">Packets</div>
                    <div class="card-body" id="packets"></div>
                </div>
            </div>
            <div class="col-md-4">
                <div class="card">
                    <div class="card-header">Top Source Addresses</div>
                    <ul class="list-group list-group-flush" id="ip-counts"></ul>
                </div>
                <div class="card">
                    <div class="card-header">Protocols</div>
                    <ul class="list-group list-group-flush" id="protocol-counts"></ul>
                </div>
            </div>
        </div>
    </div>

    <script>
        let ws;

        function connect() {
            const proto = location.protocol === 'https:' ? 'wss:' : 'ws:';
            ws = new WebSocket(proto + '//' + location.host + '/ws');
            ws.onopen = () => setBadge('Connected', 'bg-success');
            ws.onclose = () => { setBadge('Disconnected', 'bg-secondary'); setTimeout(connect, 2000); };
            ws.onmessage = (e) => handle(JSON.parse(e.data));
        }

        function setBadge(text, cls) {
            const el = document.getElementById('conn-status');
            el.textContent = text;
            el.className = 'badge ' + cls;
        }

        function startCapture() {
            const duration = parseInt(document.getElementById('duration').value, 10) || 30;
            document.getElementById('packets').innerHTML = '';
            ws.send(JSON.stringify({action: 'start_capture', duration: duration}));
        }

        function fill(id, counts) {
            const ul = document.getElementById(id);
            ul.innerHTML = '';
            Object.entries(counts || {}).sort((a, b) => b[1] - a[1]).forEach(([k, v]) => {
                const li = document.createElement('li');
                li.className = 'list-group-item d-flex justify-content-between';
                li.innerHTML = '<code></code><span class="badge bg-primary rounded-pill"></span>';
                li.children[0].textContent = k;
                li.children[1].textContent = v;
                ul.appendChild(li);
            });
        }

        function handle(msg) {
            if (msg.type === 'status') {
                document.getElementById('status').textContent = msg.message;
                return;
            }
            const p = msg.packet;
            const row = document.createElement('div');
            row.textContent = '#' + p.id + '  ' + p.src_ip + ' -> ' + p.dst_ip + '  proto ' + p.protocol + (p.hostname ? '  ' + p.hostname : '');
            const box = document.getElementById('packets');
            box.appendChild(row);
            box.scrollTop = box.scrollHeight;
            fill('ip-counts', msg.ip_counts);
            fill('protocol-counts', msg.protocol_counts);
        }

        connect();
    </script>
</body>
</html>
`
