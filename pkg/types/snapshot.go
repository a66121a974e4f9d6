package types

// Snapshot file (one per room, <canvas-dir>/<roomCode>.json):
//   roomCode: string
//   lastUpdated: ISO-8601 timestamp
//   components: Component[]
//
// Component:
//   id: string               // unique across the whole room tree
//   type: string             // html-ish tag, "div" when absent
//   style: { [prop]: string }
//   content: string          // optional text
//   children: Component[]    // render order
//
// The file is replaced whole on every mutation; readers always see a
// complete snapshot.
