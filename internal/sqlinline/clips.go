package sqlinline

const QInsertClip = `--sql c7e78825-c8c7-437b-b662-1ef1cb107514
insert into clips(id, prompt_id, url, storage_key, duration_sec, bytes, created_at)
values ($1::uuid, $2::uuid, $3::text, nullif($4::text, ''), $5::double precision, $6::bigint, now());
`

const QListClipsByPrompt = `--sql a119a8b6-0647-4ef8-8fc8-8e5fe943c200
select id, prompt_id, url, coalesce(storage_key, ''), duration_sec, bytes, created_at
from clips
where prompt_id = $1::uuid
order by created_at desc;
`
