package types

// Client -> Server
// createRoom:
//   roomName: string
//
// joinRoom:
//   roomCode: string
//
// leaveRoom:
//   roomCode: string
//
// addComponent:
//   roomCode: string
//   component: { id, type, style, content, children }
//
// addChildComponent:
//   roomCode: string
//   parentId: string
//   childComponent: Component
//
// removeComponent:
//   roomCode: string
//   componentId: string
//
// moveComponent:
//   roomCode: string
//   componentId: string
//   newPosition: { left: string, top: string }
//
// transformComponent:
//   roomCode: string
//   componentId: string
//   newSize: { width: string, height: string }
//
// updateComponentStyle:
//   roomCode: string
//   componentId: string
//   styleUpdates: { [prop]: string }
//
// updateComponentProperties:
//   roomCode: string
//   componentId: string
//   updates: { [prop]: string } // "content" writes the text, the rest style

// Server -> Client (all frames are { type, payload })
// roomCreated:        { code, name }
// joinedRoom:         { code, name }
// leftRoom:           { roomCode }
// initialCanvasLoad:  Component[]         // only sent when non-empty
// newUserJoined:      { email }           // existing members only
// userLeft:           { email }
// userDisconnected:   { email }           // per room the socket had joined
// updateUsersList:    [{ email, name, isConnected }]
// componentAdded:     Component           // room minus sender
// childComponentAdded:{ parentId, childComponent }
// componentRemoved:   { componentId }
// componentMoved:     { componentId, newPosition }
// componentTransformed: { componentId, newSize }
// componentStyleUpdated: { componentId, styleUpdates }
// componentPropertiesUpdated: { componentId, updates } // includes sender
// error:              { message }         // only to the caller
