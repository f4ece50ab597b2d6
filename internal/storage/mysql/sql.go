package mysql

const insertHotelSQL = `
INSERT INTO hotels
  (name, address, price, images, lon, lat, author_id)
VALUES
  (?, ?, ?, ?, ?, ?, ?)
`

const updateHotelSQL = `
UPDATE hotels SET
  name    = ?,
  address = ?,
  price   = ?,
  images  = ?,
  lon     = ?,
  lat     = ?
WHERE id = ?
`

const deleteHotelSQL = `DELETE FROM hotels WHERE id = ?`

// -----------------------------------------------------------------------------
// VOTES
// -----------------------------------------------------------------------------

// Taken inside the toggle transaction; serialises votes on one hotel.
const lockHotelSQL = `SELECT id FROM hotels WHERE id = ? FOR UPDATE`

const voteStateSQL = `SELECT direction FROM hotel_votes WHERE hotel_id = ? AND user_id = ?`

const insertVoteSQL = `INSERT INTO hotel_votes (hotel_id, user_id, direction) VALUES (?, ?, ?)`

const updateVoteSQL = `UPDATE hotel_votes SET direction = ? WHERE hotel_id = ? AND user_id = ?`

const deleteVoteSQL = `DELETE FROM hotel_votes WHERE hotel_id = ? AND user_id = ?`

// -----------------------------------------------------------------------------
// READ QUERIES
// -----------------------------------------------------------------------------

// Hotel columns joined with the author. Vote sets are loaded separately.
const hotelColumns = `
  h.id,
  h.name,
  h.address,
  h.price,
  h.images,
  h.lon,
  h.lat,
  h.author_id,
  u.username
`

// A hotel without votes yields one row with NULL vote columns; a missing
// hotel yields none.
const listVotesSQL = `
SELECT v.user_id, v.direction
FROM hotels h
LEFT JOIN hotel_votes v ON v.hotel_id = h.id
WHERE h.id = ?
ORDER BY v.user_id
`

// Placeholders for the IN list are appended at query time.
const listPageVotesSQL = `
SELECT hotel_id, user_id, direction
FROM hotel_votes
WHERE hotel_id IN (%s)
ORDER BY hotel_id, user_id
`

const getHotelSQL = `
SELECT` + hotelColumns + `
FROM hotels h
JOIN users u ON u.id = h.author_id
WHERE h.id = ?
`

// Newest first; a NULL author filter lists every hotel.
const listHotelsSQL = `
SELECT` + hotelColumns + `
FROM hotels h
JOIN users u ON u.id = h.author_id
WHERE (? IS NULL OR h.author_id = ?)
ORDER BY h.id DESC
LIMIT ? OFFSET ?
`

const listReviewsSQL = `
SELECT r.id, r.hotel_id, r.author_id, u.username, r.body, r.rating, r.created_at
FROM reviews r
JOIN users u ON u.id = r.author_id
WHERE r.hotel_id = ?
ORDER BY r.created_at DESC, r.id DESC
LIMIT ?
`

// -----------------------------------------------------------------------------
// USERS
// -----------------------------------------------------------------------------

const insertUserSQL = `INSERT INTO users (username, password_hash) VALUES (?, ?)`

const getUserSQL = `SELECT id, username, password_hash, created_at FROM users WHERE id = ?`

const getUserByUsernameSQL = `SELECT id, username, password_hash, created_at FROM users WHERE username = ?`

const updateUserSQL = `UPDATE users SET username = ? WHERE id = ?`
