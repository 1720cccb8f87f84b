package sqlite

// Schema is embedded; the backend owns its own migrations the same way it
// owns its SQL. Accounts come first so the foreign keys resolve.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS accounts (
  id            TEXT PRIMARY KEY,
  email         TEXT NOT NULL,
  password_hash TEXT NOT NULL,
  created_at    TIMESTAMP NOT NULL,
  updated_at    TIMESTAMP NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_accounts_email ON accounts(lower(email));

CREATE TABLE IF NOT EXISTS short_urls (
  id           TEXT PRIMARY KEY,
  code         TEXT NOT NULL UNIQUE,
  url          TEXT NOT NULL,
  access_count INTEGER NOT NULL DEFAULT 0,
  owner_id     TEXT NULL REFERENCES accounts(id) ON DELETE SET NULL,
  created_at   TIMESTAMP NOT NULL,
  updated_at   TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_short_urls_owner ON short_urls(owner_id);

CREATE TABLE IF NOT EXISTS categories (
  id          TEXT PRIMARY KEY,
  name        TEXT NOT NULL,
  name_key    TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  icon        TEXT NOT NULL DEFAULT '',
  color       TEXT NOT NULL DEFAULT '',
  owner_id    TEXT NULL REFERENCES accounts(id) ON DELETE CASCADE,
  created_at  TIMESTAMP NOT NULL,
  updated_at  TIMESTAMP NOT NULL,
  UNIQUE (owner_id, name_key)
);

CREATE TABLE IF NOT EXISTS url_categories (
  url_id      TEXT NOT NULL REFERENCES short_urls(id) ON DELETE CASCADE,
  category_id TEXT NOT NULL REFERENCES categories(id) ON DELETE CASCADE,
  PRIMARY KEY (url_id, category_id)
);
`
