package server

const testPage = `<!DOCTYPE html>
<html>
<head>
    <title>roomchat WebSocket Test</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #messages {
            border: 1px solid #ccc;
            height: 300px;
            padding: 10px;
            overflow-y: scroll;
            margin: 10px 0;
            background-color: #f9f9f9;
        }
        input[type="text"] { width: 200px; padding: 5px; margin-right: 10px; }
        button {
            padding: 5px 15px;
            background-color: #007cba;
            color: white;
            border: none;
            cursor: pointer;
        }
        button:hover { background-color: #005a87; }
        .status { margin: 10px 0; padding: 5px; border-radius: 3px; }
        .connected { background-color: #d4edda; color: #155724; }
        .disconnected { background-color: #f8d7da; color: #721c24; }
    </style>
</head>
<body>
    <h1>roomchat WebSocket Test</h1>

    <div id="status" class="status disconnected">Disconnected</div>

    <div>
        <input type="text" id="username" placeholder="Username">
        <input type="text" id="room" placeholder="Room" value="sports">
        <button id="connectButton" onclick="toggleConnection()">Connect</button>
    </div>
    <div style="margin-top: 10px">
        <input type="text" id="toUser" placeholder="Private to (optional)">
        <input type="text" id="messageInput" placeholder="Type a message..." disabled>
        <button id="sendButton" onclick="sendMessage()" disabled>Send</button>
    </div>

    <div id="messages"></div>

    <script>
        let ws = null;
        const messagesDiv = document.getElementById('messages');
        const messageInput = document.getElementById('messageInput');
        const sendButton = document.getElementById('sendButton');
        const connectButton = document.getElementById('connectButton');
        const statusDiv = document.getElementById('status');

        function addLine(text, color) {
            const el = document.createElement('div');
            el.style.margin = '5px 0';
            el.style.color = color || 'gray';
            el.textContent = text;
            messagesDiv.appendChild(el);
            messagesDiv.scrollTop = messagesDiv.scrollHeight;
        }

        function render(frame) {
            const d = frame.data || {};
            switch (frame.event) {
            case 'message':
                addLine('[' + (d.room || '') + '] ' + d.from_user + ': ' + d.message, d.from_user === 'System' ? 'gray' : 'green');
                break;
            case 'privateMessage':
                addLine('(private) ' + d.from_user + ' -> ' + d.to_user + ': ' + d.message, 'purple');
                break;
            case 'roomUsers':
                addLine('In room: ' + d.join(', '));
                break;
            default:
                addLine(frame.event + ' ' + JSON.stringify(d));
            }
        }

        function updateStatus(connected) {
            statusDiv.textContent = connected ? 'Connected' : 'Disconnected';
            statusDiv.className = 'status ' + (connected ? 'connected' : 'disconnected');
            messageInput.disabled = !connected;
            sendButton.disabled = !connected;
            connectButton.textContent = connected ? 'Disconnect' : 'Connect';
        }

        function send(event, data) {
            ws.send(JSON.stringify({ event: event, data: data }));
        }

        function connect() {
            const scheme = location.protocol === 'https:' ? 'wss://' : 'ws://';
            ws = new WebSocket(scheme + location.host + '/ws');

            ws.onopen = function() {
                updateStatus(true);
                send('join', {
                    username: document.getElementById('username').value,
                    room: document.getElementById('room').value
                });
            };

            ws.onmessage = function(event) {
                event.data.split('\n').forEach(function(line) {
                    if (line) {
                        render(JSON.parse(line));
                    }
                });
            };

            ws.onclose = function() {
                addLine('Connection closed');
                updateStatus(false);
                ws = null;
            };
        }

        function toggleConnection() {
            if (ws && ws.readyState === WebSocket.OPEN) {
                ws.close();
            } else {
                connect();
            }
        }

        function sendMessage() {
            const message = messageInput.value.trim();
            if (!message || !ws || ws.readyState !== WebSocket.OPEN) {
                return;
            }
            const toUser = document.getElementById('toUser').value.trim();
            if (toUser) {
                send('privateMessage', { to_user: toUser, message: message });
            } else {
                send('chatMessage', { message: message });
            }
            messageInput.value = '';
        }

        messageInput.addEventListener('keypress', function(e) {
            if (e.key === 'Enter') {
                sendMessage();
            }
        });
    </script>
</body>
</html>`
